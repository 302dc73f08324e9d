package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/and161185/agrimarket/internal/errs"
)

// Error is a non-2xx API answer that is not a field validation failure.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Detail)
}

// Is maps HTTP statuses onto the shared sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case errs.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case errs.ErrNotFound:
		return e.Status == http.StatusNotFound
	case errs.ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// Detail extracts the human-readable message carried by err, or "".
func Detail(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		if ve.Detail != "" {
			return ve.Detail
		}
		return ve.Error()
	}
	return ""
}

// decodeError turns an error response into *errs.ValidationError (400) or *Error.
// Bodies follow the DRF conventions: {"detail": "..."}, {"field": ["msg", ...]} or ["msg", ...].
func decodeError(status int, body []byte) error {
	detail, fields := parseErrorBody(body)
	if status == http.StatusBadRequest {
		return &errs.ValidationError{Detail: detail, Fields: fields}
	}
	if detail == "" && len(fields) > 0 {
		detail = flatten(fields)
	}
	return &Error{Status: status, Detail: detail}
}

func parseErrorBody(body []byte) (string, map[string][]string) {
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return strings.Join(list, "; "), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body)), nil
	}

	var detail string
	fields := map[string][]string{}
	for k, raw := range obj {
		msgs := messages(raw)
		if len(msgs) == 0 {
			continue
		}
		switch k {
		case "detail":
			detail = strings.Join(msgs, "; ")
		case "non_field_errors":
			if detail == "" {
				detail = strings.Join(msgs, "; ")
			}
		default:
			fields[k] = msgs
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return detail, fields
}

func messages(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []string{s}
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var nested map[string]json.RawMessage
	if json.Unmarshal(raw, &nested) == nil {
		var out []string
		for k, v := range nested {
			for _, m := range messages(v) {
				out = append(out, k+": "+m)
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}

func flatten(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+strings.Join(fields[n], "; "))
	}
	return strings.Join(parts, ", ")
}
