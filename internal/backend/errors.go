package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrTimeout is returned when a request exceeds the client timeout.
	ErrTimeout = errors.New("backend: request timeout")
	// ErrNetwork is returned when the backend could not be reached.
	ErrNetwork = errors.New("backend: network error")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.StatusCode)
}

// Fields returns the names of the fields that failed validation, sorted.
func (e *APIError) Fields() []string {
	out := make([]string, 0, len(e.FieldErrors))
	for k := range e.FieldErrors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsUnauthorized reports whether the backend rejected the bearer token.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

const defaultUserMessage = "An unexpected error occurred. Please try again."

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request. Please check your input.",
	http.StatusUnauthorized:        "Invalid credentials. Please try again.",
	http.StatusForbidden:           "Access forbidden. Please contact support.",
	http.StatusNotFound:            "Service not found. Please contact support.",
	http.StatusConflict:            "Account already exists with this email.",
	http.StatusTooManyRequests:     "Too many requests. Please wait before trying again.",
	http.StatusInternalServerError: "Server error. Please try again later.",
	http.StatusServiceUnavailable:  "Service temporarily unavailable. Please try again later.",
}

// UserMessage maps an error from this package to the text shown to the patient.
// Server messages are surfaced verbatim; otherwise the status decides.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return "Request timeout. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection."
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return defaultUserMessage
	}
	if apiErr.StatusCode == http.StatusUnprocessableEntity && len(apiErr.FieldErrors) > 0 {
		return "Please fix the validation errors below"
	}
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		return msg
	}
	if msg, ok := statusMessages[apiErr.StatusCode]; ok {
		return msg
	}
	return defaultUserMessage
}

// errorBody covers both error shapes the backend emits: a field map or a list of
// {field, message} entries.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if len(apiErr.Message) > 200 || strings.HasPrefix(apiErr.Message, "<") {
			apiErr.Message = ""
		}
		return apiErr
	}
	apiErr.Message = eb.Message
	if apiErr.Message == "" {
		apiErr.Message = eb.Error
	}
	if len(eb.Errors) == 0 {
		return apiErr
	}
	fields := map[string]string{}
	var asMap map[string]any
	if err := json.Unmarshal(eb.Errors, &asMap); err == nil {
		for k, v := range asMap {
			fields[k] = fmt.Sprint(v)
		}
	} else {
		var asList []struct {
			Field   string `json:"field"`
			Path    string `json:"path"`
			Message string `json:"message"`
			Msg     string `json:"msg"`
		}
		if err := json.Unmarshal(eb.Errors, &asList); err == nil {
			for _, item := range asList {
				name := item.Field
				if name == "" {
					name = item.Path
				}
				msg := item.Message
				if msg == "" {
					msg = item.Msg
				}
				if name != "" {
					fields[name] = msg
				}
			}
		}
	}
	if len(fields) > 0 {
		apiErr.FieldErrors = fields
	}
	return apiErr
}
