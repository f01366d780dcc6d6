// Package format renders response payloads as json, xml, html or csv.
package format

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/darkden-lab/ozone/internal/manifest"
)

// Format tokens understood by the registry.
const (
	JSON = "json"
	XML  = "xml"
	HTML = "html"
	CSV  = "csv"
)

// Default is the format used for absent or unknown tokens.
const Default = JSON

// CSVDisposition is the Content-Disposition sent with csv output.
const CSVDisposition = "attachment;filename=ozone-services-request.csv"

// Options carries what a producer needs beyond the payload. HTML needs both
// fields to pick and fill its view.
type Options struct {
	Enumerate bool
	Manifest  *manifest.Manifest
}

// Output is a rendered payload.
type Output struct {
	Body        []byte
	ContentType string
	Headers     map[string]string
}

// Producer renders payloads to one wire format.
type Producer struct {
	Name        string
	ContentType string
	Headers     map[string]string
	Render      func(payload any, opts Options) ([]byte, error)
}

// Registry maps format tokens to producers.
type Registry struct {
	mu        sync.RWMutex
	producers map[string]Producer
}

// NewRegistry returns a registry holding the json, xml, html and csv
// producers.
func NewRegistry() *Registry {
	r := &Registry{producers: make(map[string]Producer)}
	r.Register(Producer{Name: JSON, ContentType: "application/json", Render: renderJSON})
	r.Register(Producer{Name: XML, ContentType: "text/xml", Render: renderXML})
	r.Register(Producer{Name: HTML, ContentType: "text/html", Render: renderHTML})
	r.Register(Producer{
		Name:        CSV,
		ContentType: "text/csv",
		Headers:     map[string]string{"Content-Disposition": CSVDisposition},
		Render:      renderCSV,
	})
	return r
}

// Register adds or replaces a producer.
func (r *Registry) Register(p Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[strings.ToLower(p.Name)] = p
}

// Resolve returns the producer for name, falling back to json.
func (r *Registry) Resolve(name string) Producer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.producers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return r.producers[Default]
}

// Names returns the registered format tokens, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.producers))
	for n := range r.producers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Produce renders payload with the producer resolved from name.
func (r *Registry) Produce(name string, payload any, opts Options) (Output, error) {
	p := r.Resolve(name)
	body, err := p.Render(payload, opts)
	if err != nil {
		return Output{}, fmt.Errorf("failed to render %s: %w", p.Name, err)
	}
	return Output{Body: body, ContentType: p.ContentType, Headers: p.Headers}, nil
}
