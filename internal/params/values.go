package params

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// maxBodyBytes caps the request body read for parameters.
const maxBodyBytes = 1 << 20

// Values is an insertion-ordered multimap of raw request parameters.
type Values struct {
	m *orderedmap.OrderedMap[string, []string]
}

// NewValues returns an empty Values.
func NewValues() *Values {
	return &Values{m: orderedmap.New[string, []string]()}
}

// Add appends value to key, creating the key at the end if it is new.
func (v *Values) Add(key, value string) {
	existing, _ := v.m.Get(key)
	v.m.Set(key, append(existing, value))
}

// Set replaces every value of key. An existing key keeps its position.
func (v *Values) Set(key string, values []string) {
	v.m.Set(key, append([]string(nil), values...))
}

// Get returns the values supplied for key.
func (v *Values) Get(key string) []string {
	vals, _ := v.m.Get(key)
	return vals
}

// Keys returns the keys in insertion order.
func (v *Values) Keys() []string {
	keys := make([]string, 0, v.m.Len())
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of distinct keys.
func (v *Values) Len() int { return v.m.Len() }

// Merge folds sources left to right into one Values. A key supplied by a
// later source overwrites the values of an earlier one but keeps the
// position where it first appeared.
func Merge(sources ...*Values) *Values {
	out := NewValues()
	for _, src := range sources {
		if src == nil {
			continue
		}
		for pair := src.m.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
	}
	return out
}

// ParseQuery parses a raw query string keeping the textual order of keys.
// Repeated keys accumulate values. Undecodable escapes are kept verbatim.
func ParseQuery(raw string) *Values {
	out := NewValues()
	for _, piece := range strings.Split(raw, "&") {
		if piece == "" {
			continue
		}
		key, value, _ := strings.Cut(piece, "=")
		out.Add(unescape(key), unescape(value))
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// FromMap converts unordered pairs, such as route variables, into Values
// sorted by key.
func FromMap(m map[string]string) *Values {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := NewValues()
	for _, k := range keys {
		out.Add(k, m[k])
	}
	return out
}

// ParseBody reads form-encoded or JSON object bodies. Anything else,
// including malformed bodies, yields no values.
func ParseBody(r *http.Request) *Values {
	out := NewValues()
	if r.Body == nil || r.Body == http.NoBody {
		return out
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "application/json":
	default:
		return out
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(data) == 0 {
		return out
	}

	if mediaType == "application/x-www-form-urlencoded" {
		return ParseQuery(string(data))
	}

	obj := orderedmap.New[string, any]()
	if err := json.Unmarshal(data, obj); err != nil {
		return out
	}
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if list, ok := pair.Value.([]any); ok {
			for _, item := range list {
				out.Add(pair.Key, scalarString(item))
			}
			if len(list) == 0 {
				out.Set(pair.Key, nil)
			}
			continue
		}
		out.Add(pair.Key, scalarString(pair.Value))
	}
	return out
}

// Collect merges route variables, body and query string, in that order.
func Collect(r *http.Request) *Values {
	return Merge(FromMap(mux.Vars(r)), ParseBody(r), ParseQuery(r.URL.RawQuery))
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
