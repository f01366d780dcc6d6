// Package response assembles the canonical response envelope and its
// optional metadata blocks.
package response

import (
	"net/http"

	"github.com/darkden-lab/ozone/internal/plugin"
)

// Envelope is the canonical response body. Total always equals
// len(Results).
type Envelope struct {
	HTTPCode    int              `json:"httpCode"`
	URL         string           `json:"url"`
	Total       int              `json:"total"`
	Results     []map[string]any `json:"results"`
	Performance *Performance     `json:"performance,omitempty"`
	System      *System          `json:"system,omitempty"`
	Request     *RequestInfo     `json:"request,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Build seeds an envelope from a plugin result. A zero HTTP code becomes 200.
func Build(url string, res *plugin.Result) *Envelope {
	env := &Envelope{HTTPCode: http.StatusOK, URL: url, Results: []map[string]any{}}
	if res == nil {
		return env
	}
	if res.HTTPCode != 0 {
		env.HTTPCode = res.HTTPCode
	}
	if res.Results != nil {
		env.Results = res.Results
	}
	env.Total = len(env.Results)
	return env
}

// Failure builds the envelope sent when a request could not be served.
func Failure(url string, code int, msg string) *Envelope {
	return &Envelope{
		HTTPCode: code,
		URL:      url,
		Results:  []map[string]any{},
		Error:    msg,
	}
}

// StatusCode returns the HTTP status to send for env.
func (e *Envelope) StatusCode() int {
	if e.HTTPCode == 0 {
		return http.StatusOK
	}
	return e.HTTPCode
}
