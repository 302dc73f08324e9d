package errs

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries field-level messages returned by the remote API.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Detail string
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" && len(e.Fields) == 0 {
		return "validation: " + e.Detail
	}
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", n, strings.Join(e.Fields[n], "; ")))
	}
	if e.Detail != "" {
		parts = append([]string{e.Detail}, parts...)
	}
	return "validation: " + strings.Join(parts, ", ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Field returns the first message for a field, or "".
func (e *ValidationError) Field(name string) string {
	if msgs := e.Fields[name]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}
