package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/darkden-lab/ozone/internal/response"
)

// renderCSV writes a header row with the sorted key union of all records,
// then one row per record. Cells that are not scalars are JSON encoded.
func renderCSV(payload any, _ Options) ([]byte, error) {
	records, err := csvRecords(payload)
	if err != nil {
		return nil, err
	}

	columns := keyUnion(records)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func csvRecords(payload any) ([]map[string]any, error) {
	switch p := payload.(type) {
	case *response.Envelope:
		return p.Results, nil
	case *response.Enumeration:
		return enumerationRows(p), nil
	case []map[string]any:
		return p, nil
	default:
		return nil, fmt.Errorf("csv cannot render %T", payload)
	}
}

// enumerationRows flattens an enumeration to one row per method binding.
func enumerationRows(en *response.Enumeration) []map[string]any {
	base := map[string]any{
		"plugin":      en.Plugin,
		"name":        en.Name,
		"description": en.Description,
		"route":       en.Route,
		"serviceName": en.ServiceName,
	}
	if en.Resource == nil || len(en.Resource.HTTPMethods) == 0 {
		return []map[string]any{base}
	}

	rows := make([]map[string]any, 0, len(en.Resource.HTTPMethods))
	for _, b := range en.Resource.HTTPMethods {
		row := make(map[string]any, len(base)+4)
		for k, v := range base {
			row[k] = v
		}
		row["version"] = en.Resource.Version
		row["implementation"] = en.Resource.Implementation
		row["httpMethod"] = b.HTTPMethod
		row["function"] = b.Function
		rows = append(rows, row)
	}
	return rows
}

func keyUnion(records []map[string]any) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
