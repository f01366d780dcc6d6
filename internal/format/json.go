package format

import "encoding/json"

func renderJSON(payload any, _ Options) ([]byte, error) {
	return json.Marshal(payload)
}
