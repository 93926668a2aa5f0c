package types

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// MaxNameLength bounds environment and pipeline names
const MaxNameLength = 255

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-][a-zA-Z0-9_\-.]*$`)

// Environment groups pipelines and agents. Jobs of a pipeline that belongs
// to an environment may only run on agents of that environment.
type Environment struct {
	Name      string                `json:"name" yaml:"name" validate:"required,max=255,envname"`
	Pipelines []string              `json:"pipelines,omitempty" yaml:"pipelines,omitempty" validate:"dive,required,max=255,envname"`
	Agents    []string              `json:"agents,omitempty" yaml:"agents,omitempty" validate:"dive,required"`
	Variables []EnvironmentVariable `json:"variables,omitempty" yaml:"variables,omitempty" validate:"dive"`

	// Origin is empty for locally defined environments and holds the config
	// repository id for parts contributed by a config repository.
	Origin string `json:"origin,omitempty" yaml:"-"`
}

// EnvironmentVariable is a name/value pair exported to jobs of an environment
type EnvironmentVariable struct {
	Name   string `json:"name" yaml:"name" validate:"required,max=255,varname"`
	Value  string `json:"value" yaml:"value"`
	Secure bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// IsLocal reports whether the environment is defined in the main configuration
func (e *Environment) IsLocal() bool {
	return e.Origin == ""
}

// Clone returns a deep copy of the environment
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	return &Environment{
		Name:      e.Name,
		Pipelines: slices.Clone(e.Pipelines),
		Agents:    slices.Clone(e.Agents),
		Variables: slices.Clone(e.Variables),
		Origin:    e.Origin,
	}
}

// HasPipeline reports whether the pipeline is listed, ignoring case
func (e *Environment) HasPipeline(name string) bool {
	return slices.ContainsFunc(e.Pipelines, func(p string) bool { return SameName(p, name) })
}

// HasAgent reports whether the agent id is listed
func (e *Environment) HasAgent(id string) bool {
	return slices.Contains(e.Agents, id)
}

// AddPipeline appends the pipeline unless it is already listed
func (e *Environment) AddPipeline(name string) {
	if !e.HasPipeline(name) {
		e.Pipelines = append(e.Pipelines, name)
	}
}

// RemovePipeline drops the pipeline if listed
func (e *Environment) RemovePipeline(name string) {
	e.Pipelines = slices.DeleteFunc(e.Pipelines, func(p string) bool { return SameName(p, name) })
}

// AddAgent appends the agent id unless it is already listed
func (e *Environment) AddAgent(id string) {
	if !e.HasAgent(id) {
		e.Agents = append(e.Agents, id)
	}
}

// RemoveAgent drops the agent id if listed
func (e *Environment) RemoveAgent(id string) {
	e.Agents = slices.DeleteFunc(e.Agents, func(a string) bool { return a == id })
}

// Variable returns the variable with the given name
func (e *Environment) Variable(name string) (EnvironmentVariable, bool) {
	for _, v := range e.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return EnvironmentVariable{}, false
}

// SetVariable replaces the variable with the same name or appends a new one
func (e *Environment) SetVariable(v EnvironmentVariable) {
	for i := range e.Variables {
		if e.Variables[i].Name == v.Name {
			e.Variables[i] = v
			return
		}
	}
	e.Variables = append(e.Variables, v)
}

// RemoveVariable drops the variable if present
func (e *Environment) RemoveVariable(name string) {
	e.Variables = slices.DeleteFunc(e.Variables, func(v EnvironmentVariable) bool { return v.Name == name })
}

// Agent is an execution agent known to the server
type Agent struct {
	ID       string `json:"id" yaml:"id"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`

	// Environments is the comma-separated environment list the agent
	// reports about itself. It is advisory and independent of the
	// declared environment configuration.
	Environments string `json:"environments,omitempty" yaml:"environments,omitempty"`

	RegisteredAt  time.Time `json:"registered_at" yaml:"-"`
	LastHeartbeat time.Time `json:"last_heartbeat" yaml:"-"`
}

// EnvironmentList returns the self-reported environment names
func (a *Agent) EnvironmentList() []string {
	return ParseEnvironmentList(a.Environments)
}

// JobPlan is a job waiting to be assigned to an agent
type JobPlan struct {
	ID           int64  `json:"id" yaml:"id"`
	PipelineName string `json:"pipeline_name" yaml:"pipeline"`
	StageName    string `json:"stage_name" yaml:"stage"`
	JobName      string `json:"job_name" yaml:"job"`
}

// ParseEnvironmentList splits a comma-separated list, trims each entry and
// drops empty ones
func ParseEnvironmentList(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(csv, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SameName compares environment or pipeline names case-insensitively
func SameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NameKey returns the lookup key for a case-insensitive name
func NameKey(name string) string {
	return strings.ToLower(name)
}

// ValidName reports whether name is usable as an environment or pipeline name
func ValidName(name string) bool {
	return len(name) > 0 && len(name) <= MaxNameLength && namePattern.MatchString(name)
}
