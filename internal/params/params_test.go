package params

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_OperatorAndReserved(t *testing.T) {
	got := Classify(ParseQuery("age>21&format=xml"), DefaultRegistry())

	assert.Equal(t, []Parameter{{Key: "age", Op: OpGT, Value: "21"}}, got.Domain)
	assert.Equal(t, []Parameter{{Key: "format", Op: OpEq, Value: "xml"}}, got.Reserved)
}

func TestClassify_FoldsSplitOperator(t *testing.T) {
	got := Classify(ParseQuery("price>=100&weight<=5"), DefaultRegistry())

	require.Len(t, got.Domain, 2)
	assert.Equal(t, Parameter{Key: "price", Op: OpGTE, Value: "100"}, got.Domain[0])
	assert.Equal(t, Parameter{Key: "weight", Op: OpLTE, Value: "5"}, got.Domain[1])
}

func TestClassify_EmbeddedTwoCharOperator(t *testing.T) {
	values := NewValues()
	values.Add("price<=10", "")

	got := Classify(values, DefaultRegistry())
	assert.Equal(t, []Parameter{{Key: "price", Op: OpLTE, Value: "10"}}, got.Domain)
}

func TestClassify_UnknownKeyIsDomain(t *testing.T) {
	got := Classify(ParseQuery("name=bob&tag=a&tag=b"), DefaultRegistry())

	assert.Empty(t, got.Reserved)
	assert.Equal(t, []Parameter{
		{Key: "name", Op: OpEq, Value: "bob"},
		{Key: "tag", Op: OpEq, Value: "a"},
		{Key: "tag", Op: OpEq, Value: "b"},
	}, got.Domain)
}

func TestClassify_DeconflictsReserved(t *testing.T) {
	got := Classify(ParseQuery("format=json&format=csv&format=xml"), DefaultRegistry())

	require.Len(t, got.Reserved, 1)
	assert.Equal(t, "csv", got.Reserved[0].Value)
}

func TestClassify_DeconflictAllDefaults(t *testing.T) {
	got := Classify(ParseQuery("format=json&format=json"), DefaultRegistry())
	assert.Equal(t, "json", got.Reserved[0].Value)
}

func TestClassify_NilValues(t *testing.T) {
	got := Classify(nil, DefaultRegistry())
	assert.Empty(t, got.Domain)
	assert.Empty(t, got.Reserved)
}

func TestRegistry_Flag(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name     string
		reserved []Parameter
		want     bool
	}{
		{"absent", nil, false},
		{"empty means true", []Parameter{New(Performance, OpEq, "")}, true},
		{"true", []Parameter{New(Performance, OpEq, "true")}, true},
		{"one", []Parameter{New(Performance, OpEq, "1")}, true},
		{"false", []Parameter{New(Performance, OpEq, "false")}, false},
		{"garbage uses default", []Parameter{New(Performance, OpEq, "maybe")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Flag(tt.reserved, Performance))
		})
	}
}

func TestRegistry_StringFallsBackToDefault(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, "json", reg.String(nil, Format))
	assert.Equal(t, "xml", reg.String([]Parameter{New(Format, OpEq, "xml")}, Format))
}

func TestDefinitionOf(t *testing.T) {
	assert.Equal(t, Definition{Type: "boolean", Default: "false"}, DefinitionOf("boolean", false))
	assert.Equal(t, Definition{Type: "number", Default: "3"}, DefinitionOf("number", 3))
}

func TestParameter_Type(t *testing.T) {
	assert.Equal(t, TypeNumber, New("a", OpEq, "42").Type())
	assert.Equal(t, TypeNumber, New("a", OpEq, "-1.5").Type())
	assert.Equal(t, TypeEmail, New("a", OpEq, "bob@example.com").Type())
	assert.Equal(t, "", New("a", OpEq, "0").Type())
	assert.Equal(t, "", New("a", OpEq, "plain").Type())
}

func TestParseQuery_OrderAndEscapes(t *testing.T) {
	v := ParseQuery("b=2&a=hello%20world&b=3&bad=%zz")

	assert.Equal(t, []string{"b", "a", "bad"}, v.Keys())
	assert.Equal(t, []string{"2", "3"}, v.Get("b"))
	assert.Equal(t, []string{"hello world"}, v.Get("a"))
	assert.Equal(t, []string{"%zz"}, v.Get("bad"))
}

func TestMerge_LaterWinsKeepsPosition(t *testing.T) {
	first := ParseQuery("id=1&name=a")
	second := ParseQuery("name=b&extra=x")

	merged := Merge(first, nil, second)
	assert.Equal(t, []string{"id", "name", "extra"}, merged.Keys())
	assert.Equal(t, []string{"b"}, merged.Get("name"))
}

func TestCollect_RouteBodyQuery(t *testing.T) {
	var got *Values
	r := mux.NewRouter()
	r.HandleFunc("/widgets/{id}", func(w http.ResponseWriter, req *http.Request) {
		got = Collect(req)
	}).Methods(http.MethodPost)

	body := strings.NewReader(`{"name":"bolt","size":3,"tags":["a","b"],"id":"body"}`)
	req := httptest.NewRequest(http.MethodPost, "/widgets/7?size=4", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, []string{"id", "name", "size", "tags"}, got.Keys())
	assert.Equal(t, []string{"body"}, got.Get("id"))
	assert.Equal(t, []string{"4"}, got.Get("size"))
	assert.Equal(t, []string{"a", "b"}, got.Get("tags"))
}

func TestParseBody_FormAndMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x=1&y=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, []string{"x", "y"}, ParseBody(req).Keys())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, 0, ParseBody(req).Len())
}

func TestView(t *testing.T) {
	v := NewView([]Parameter{
		New("tag", OpEq, "a"),
		New("age", OpGT, "3"),
		New("tag", OpEq, "b"),
	})

	assert.Equal(t, 3, v.Count())
	assert.Equal(t, []string{"tag", "age"}, v.Keys())
	assert.Len(t, v.Get("tag"), 2)
	assert.Equal(t, "a", v.Value("tag"))
	_, ok := v.First("missing")
	assert.False(t, ok)

	all := v.All()
	all[0].Value = "changed"
	assert.Equal(t, "a", v.Value("tag"))
}
