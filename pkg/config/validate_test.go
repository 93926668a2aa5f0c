package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/envgate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldMessages(t *testing.T, err error) []string {
	t.Helper()
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	msgs := make([]string, len(cmdErr.Fields))
	for i, f := range cmdErr.Fields {
		msgs[i] = f.Message
	}
	return msgs
}

func TestValidateEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		env     *types.Environment
		wantMsg string
	}{
		{
			name: "valid",
			env:  &types.Environment{Name: "uat", Pipelines: []string{"P1"}, Variables: []types.EnvironmentVariable{{Name: "JAVA_HOME"}}},
		},
		{
			name:    "blank name",
			env:     &types.Environment{},
			wantMsg: "name must not be blank",
		},
		{
			name:    "malformed name",
			env:     &types.Environment{Name: ".uat"},
			wantMsg: "Invalid name '.uat'",
		},
		{
			name:    "too long",
			env:     &types.Environment{Name: strings.Repeat("a", 256)},
			wantMsg: "name must be at most 255 characters",
		},
		{
			name:    "malformed pipeline",
			env:     &types.Environment{Name: "uat", Pipelines: []string{"bad pipeline"}},
			wantMsg: "Invalid name 'bad pipeline'",
		},
		{
			name:    "malformed variable",
			env:     &types.Environment{Name: "uat", Variables: []types.EnvironmentVariable{{Name: "1abc"}}},
			wantMsg: "Invalid environment variable name '1abc'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ValidateEnvironment(tt.env)
			if tt.wantMsg == "" {
				assert.Empty(t, fields)
				return
			}
			require.NotEmpty(t, fields)
			assert.Contains(t, fields[0].Message, tt.wantMsg)
		})
	}
}

func TestValidateSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		pipelines []string
		local     []*types.Environment
		repos     map[string][]*types.Environment
		wantMsg   string
	}{
		{
			name:      "valid",
			pipelines: []string{"P1", "P2"},
			local:     []*types.Environment{{Name: "uat", Pipelines: []string{"P1"}}},
			repos:     map[string][]*types.Environment{"repo-1": {{Name: "uat", Pipelines: []string{"P2"}}}},
		},
		{
			name:      "unknown pipeline",
			pipelines: []string{"P1"},
			local:     []*types.Environment{{Name: "uat", Pipelines: []string{"P9"}}},
			wantMsg:   "Environment 'uat' refers to an unknown pipeline 'P9'",
		},
		{
			name:      "pipeline in two environments",
			pipelines: []string{"P1"},
			local: []*types.Environment{
				{Name: "prod", Pipelines: []string{"P1"}},
				{Name: "uat", Pipelines: []string{"p1"}},
			},
			wantMsg: "Associating pipeline(s) which is already part of prod environment: p1",
		},
		{
			name:      "pipeline claimed by remote part of another environment",
			pipelines: []string{"P1"},
			local:     []*types.Environment{{Name: "prod", Pipelines: []string{"P1"}}},
			repos:     map[string][]*types.Environment{"repo-1": {{Name: "uat", Pipelines: []string{"P1"}}}},
			wantMsg:   "Associating pipeline(s) which is already part of prod environment: P1",
		},
		{
			name:    "duplicate names",
			local:   []*types.Environment{{Name: "uat"}, {Name: "UAT"}},
			wantMsg: "Duplicate environment name 'UAT'",
		},
		{
			name: "duplicate variables",
			local: []*types.Environment{{Name: "uat", Variables: []types.EnvironmentVariable{
				{Name: "K", Value: "1"}, {Name: "K", Value: "2"},
			}}},
			wantMsg: "Environment variable name 'K' is not unique for environment 'uat'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := buildSnapshot(t, tt.pipelines, tt.local, tt.repos)
			err := Validate(snap)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, fieldMessages(t, err), tt.wantMsg)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{err: NewValidationError("bad"), kind: KindValidation, status: 422},
		{err: NewConflictError("stale"), kind: KindConflict, status: 409},
		{err: NewNotFoundError("missing"), kind: KindNotFound, status: 404},
		{err: NewApplyError("boom", errors.New("disk")), kind: KindApplyFailure, status: 400},
		{err: errors.New("plain"), kind: KindApplyFailure, status: 400},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, KindOf(tt.err).StatusCode())
		})
	}

	wrapped := NewApplyError("Failed to persist configuration", errors.New("disk full"))
	assert.Equal(t, "Failed to persist configuration: disk full", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "disk full")

	withFields := NewValidationError("Validation failed", FieldError{Message: "a"}, FieldError{Message: "b"})
	assert.Equal(t, "Validation failed: a; b", withFields.Error())
}
