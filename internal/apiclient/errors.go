package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

var (
	// ErrSessionExpired means the access token could not be refreshed and the
	// stored session has been cleared.
	ErrSessionExpired = errors.New("apiclient: session expired")
	ErrUnavailable    = errors.New("apiclient: backend unavailable")
)

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Status  int
	Method  string
	Path    string
	Payload models.APIError
}

func (e *HTTPError) Error() string {
	msg := e.Payload.Text()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	return &HTTPError{
		Status:  status,
		Method:  method,
		Path:    path,
		Payload: decodeAPIError(status, body),
	}
}

// decodeAPIError accepts both the {detail, message, errors} envelope and a bare
// field -> messages object.
func decodeAPIError(status int, body []byte) models.APIError {
	var p models.APIError
	if len(body) == 0 {
		p.Status = status
		return p
	}
	if err := json.Unmarshal(body, &p); err != nil {
		p.Status = status
		return p
	}
	if p.Status == 0 {
		p.Status = status
	}
	if p.Text() != "" {
		return p
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return p
	}
	fields := make([]string, 0, len(raw))
	for k := range raw {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, f := range fields {
		var msgs []string
		if err := json.Unmarshal(raw[f], &msgs); err != nil {
			var one string
			if err := json.Unmarshal(raw[f], &one); err != nil {
				continue
			}
			msgs = []string{one}
		}
		if len(msgs) == 0 {
			continue
		}
		if p.Errors == nil {
			p.Errors = make(map[string][]string)
		}
		p.Errors[f] = msgs
	}
	return p
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// MessageOf returns the backend's message for err, or fallback when the
// payload carries none.
func MessageOf(err error, fallback string) string {
	var he *HTTPError
	if errors.As(err, &he) {
		if msg := he.Payload.Text(); msg != "" {
			return msg
		}
	}
	return fallback
}
