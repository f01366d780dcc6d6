package format

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/ozone/internal/manifest"
	"github.com/darkden-lab/ozone/internal/response"
)

func sampleEnvelope() *response.Envelope {
	return &response.Envelope{
		HTTPCode: 200,
		URL:      "/api/widgets/v1/list/?format=xml",
		Total:    2,
		Results: []map[string]any{
			{"id": 1, "name": "bolt", "tags": []string{"a", "b"}},
			{"id": 2, "name": "nut", "size": 3.5},
		},
	}
}

func sampleManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Informational: manifest.Informational{Plugin: "widgets", Name: "widgets", Description: "All widgets"},
		Route:         manifest.Route{URI: "/widgets/"},
		Resources: []manifest.Resource{{
			Version: 1, Route: "list", Implementation: "widgets",
			HTTPMethods: []manifest.Binding{{HTTPMethod: "GET", Function: "list"}, {HTTPMethod: "POST", Function: "create"}},
			Parameters:  []manifest.ParameterDefinition{{Parameter: "size", Type: "number", Operators: []string{"=", ">"}}},
		}},
	}
}

func TestRegistry_ContentTypes(t *testing.T) {
	r := NewRegistry()
	tests := map[string]string{
		"json": "application/json",
		"xml":  "text/xml",
		"html": "text/html",
		"csv":  "text/csv",
		"XML":  "text/xml",
	}
	for name, want := range tests {
		assert.Equal(t, want, r.Resolve(name).ContentType, name)
	}
}

func TestRegistry_UnknownFallsBackToJSON(t *testing.T) {
	r := NewRegistry()
	env := sampleEnvelope()

	want, err := r.Produce("json", env, Options{})
	require.NoError(t, err)
	for _, name := range []string{"", "yaml", "bogus"} {
		got, err := r.Produce(name, env, Options{})
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestJSON(t *testing.T) {
	out, err := NewRegistry().Produce(JSON, sampleEnvelope(), Options{})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Body, &doc))
	assert.EqualValues(t, 2, doc["total"])
	assert.NotContains(t, doc, "performance")
}

func TestXML(t *testing.T) {
	out, err := NewRegistry().Produce(XML, sampleEnvelope(), Options{})
	require.NoError(t, err)

	body := string(out.Body)
	assert.True(t, strings.HasPrefix(body, xml.Header))
	assert.Contains(t, body, "<response>")
	assert.Contains(t, body, "<httpCode>200</httpCode>")
	assert.Equal(t, 2, strings.Count(body, "<results>"))
	assert.Contains(t, body, "<tags>a</tags><tags>b</tags>")
	assert.Contains(t, body, "<url>/api/widgets/v1/list/?format=xml</url>")

	var parsed struct {
		XMLName xml.Name `xml:"response"`
		Total   int      `xml:"total"`
	}
	require.NoError(t, xml.Unmarshal(out.Body, &parsed))
	assert.Equal(t, 2, parsed.Total)
}

func TestElementName(t *testing.T) {
	assert.Equal(t, "price__", elementName("price>="))
	assert.Equal(t, "_1st", elementName("1st"))
	assert.Equal(t, "_xmlns", elementName("xmlns"))
	assert.Equal(t, "item", elementName(""))
}

func TestCSV(t *testing.T) {
	out, err := NewRegistry().Produce(CSV, sampleEnvelope(), Options{})
	require.NoError(t, err)

	assert.Equal(t, CSVDisposition, out.Headers["Content-Disposition"])
	lines := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,size,tags", lines[0])
	assert.Equal(t, `1,bolt,,"[""a"",""b""]"`, lines[1])
	assert.Equal(t, "2,nut,3.5,", lines[2])
}

func TestCSV_Enumeration(t *testing.T) {
	en := response.Enumerate(sampleManifest(), "/api/widgets/v1/list/")
	out, err := NewRegistry().Produce(CSV, en, Options{Enumerate: true})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "httpMethod")
}

func TestHTML_PicksView(t *testing.T) {
	r := NewRegistry()
	m := sampleManifest()

	out, err := r.Produce(HTML, sampleEnvelope(), Options{Manifest: m})
	require.NoError(t, err)
	body := string(out.Body)
	assert.Contains(t, body, "<h1>Widgets</h1>")
	assert.Contains(t, body, `<table class="table table-striped table-sm">`)
	assert.Contains(t, body, "bolt")

	en := response.Enumerate(m, "/api/widgets/v1/list/")
	out, err = r.Produce(HTML, en, Options{Enumerate: true, Manifest: m})
	require.NoError(t, err)
	body = string(out.Body)
	assert.Contains(t, body, "Resource v1")
	assert.Contains(t, body, "<code>size</code>")
	assert.NotContains(t, body, "No results.")
}

func TestHTML_EscapesResults(t *testing.T) {
	env := sampleEnvelope()
	env.Results = []map[string]any{{"name": "<script>alert(1)</script>"}}
	env.Total = 1

	out, err := NewRegistry().Produce(HTML, env, Options{Manifest: sampleManifest()})
	require.NoError(t, err)
	assert.NotContains(t, string(out.Body), "<script>alert(1)")
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a    any
		op   string
		b    any
		want bool
	}{
		{2, "gt", 10, false},
		{"b", "gt", "a", true},
		{3, "eq", "3", true},
		{1, "neq", 2, true},
		{1.5, "lt", 2, true},
	}
	for _, tt := range tests {
		got, err := compare(tt.a, tt.op, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s %v", tt.a, tt.op, tt.b)
	}

	_, err := compare(1, "like", 2)
	assert.Error(t, err)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Widgets", capitalize("widgets"))
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Élan", capitalize("élan"))
}
