package format

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/darkden-lab/ozone/internal/response"
)

//go:embed views/*.html
var viewFS embed.FS

// View names.
const (
	ViewResponse  = "response.html"
	ViewEnumerate = "enumerate.html"
)

var views = template.Must(template.New("views").Funcs(template.FuncMap{
	"capitalize": capitalize,
	"compare":    compare,
	"datatable":  datatable,
}).ParseFS(viewFS, "views/*.html"))

type viewInfo struct {
	Name string
	Desc string
}

type viewData struct {
	Service     string
	Info        viewInfo
	Response    any
	Envelope    *response.Envelope
	Enumeration *response.Enumeration
}

// renderHTML renders the enumeration view when opts.Enumerate is set and
// the response view otherwise.
func renderHTML(payload any, opts Options) ([]byte, error) {
	data := viewData{Response: payload}
	if m := opts.Manifest; m != nil {
		data.Service = m.Informational.Plugin
		data.Info = viewInfo{Name: m.Informational.Name, Desc: m.Informational.Description}
	}
	switch p := payload.(type) {
	case *response.Envelope:
		data.Envelope = p
	case *response.Enumeration:
		data.Enumeration = p
	}

	name := ViewResponse
	if opts.Enumerate {
		name = ViewEnumerate
		if data.Enumeration == nil {
			return nil, fmt.Errorf("enumeration view needs an enumeration, got %T", payload)
		}
	}

	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// compare supports eq, neq, gt and lt. Operands that both parse as numbers
// are compared numerically, others as strings.
func compare(a any, op string, b any) (bool, error) {
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	numeric := aerr == nil && berr == nil

	switch op {
	case "eq", "==":
		if numeric {
			return af == bf, nil
		}
		return as == bs, nil
	case "neq", "!=":
		if numeric {
			return af != bf, nil
		}
		return as != bs, nil
	case "gt", ">":
		if numeric {
			return af > bf, nil
		}
		return as > bs, nil
	case "lt", "<":
		if numeric {
			return af < bf, nil
		}
		return as < bs, nil
	}
	return false, fmt.Errorf("compare: unknown operator %q", op)
}

// datatable renders records as a Bootstrap table over their key union.
func datatable(records []map[string]any) template.HTML {
	columns := keyUnion(records)

	var b strings.Builder
	b.WriteString(`<table class="table table-striped table-sm"><thead><tr>`)
	for _, col := range columns {
		b.WriteString("<th>" + template.HTMLEscapeString(capitalize(col)) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, rec := range records {
		b.WriteString("<tr>")
		for _, col := range columns {
			b.WriteString("<td>" + template.HTMLEscapeString(cell(rec[col])) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return template.HTML(b.String())
}
