package manager

import (
	"errors"
	"net/http"

	"github.com/cuemby/envgate/pkg/config"
)

// OperationResult reports the outcome of an environment operation in the
// form returned to API callers
type OperationResult struct {
	Message    string              `json:"message"`
	StatusCode int                 `json:"status_code"`
	Kind       config.ErrorKind    `json:"kind,omitempty"`
	Fields     []config.FieldError `json:"fields,omitempty"`
}

// IsSuccessful reports whether the operation was applied
func (r OperationResult) IsSuccessful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func success(message string) OperationResult {
	return OperationResult{Message: message, StatusCode: http.StatusOK}
}

func failure(prefix string, err error) OperationResult {
	kind := config.KindOf(err)
	result := OperationResult{
		Message:    prefix + " " + err.Error(),
		StatusCode: kind.StatusCode(),
		Kind:       kind,
	}
	var cmdErr *config.CommandError
	if errors.As(err, &cmdErr) {
		result.Fields = cmdErr.Fields
	}
	return result
}
