package predict

import (
	"errors"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// FallbackMessage is shown when the prediction service fails without saying why
const FallbackMessage = "Prediction failed"

// ErrMalformedResponse marks a reply that could not be decoded
var ErrMalformedResponse = errors.New("malformed response from prediction service")

// ValidationError reports an input outside its domain. It is raised before any
// request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RequestError reports a failed call to the prediction service. StatusCode is
// zero when the call itself could not complete.
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Transport reports whether the call failed before a status was received
func (e *RequestError) Transport() bool {
	return e.StatusCode == 0
}

var (
	messagePolicyOnce sync.Once
	messagePolicy     *bluemonday.Policy
)

// cleanMessage strips markup from a service-supplied message so it can be
// shown verbatim in any view.
func cleanMessage(raw string) string {
	messagePolicyOnce.Do(func() {
		messagePolicy = bluemonday.StrictPolicy()
	})
	cleaned := strings.TrimSpace(html.UnescapeString(messagePolicy.Sanitize(raw)))
	if cleaned == "" {
		return FallbackMessage
	}
	return cleaned
}
