package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSONRenderer writes Value as application/json with Status (default 200).
//
// The value is encoded before the status line is written, so an encoding
// failure is returned as an error and the handler answers 500 instead of
// sending a truncated body.
type JSONRenderer struct {
	Status int
	Value  any

	// Indent, when set, pretty-prints with this indent string.
	Indent string
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if jr.Indent != "" {
		enc.SetIndent("", jr.Indent)
	}
	if err := enc.Encode(jr.Value); err != nil {
		return Error(http.StatusInternalServerError, "", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOr(jr.Status, http.StatusOK))
	_, err := w.Write(buf.Bytes())
	return err
}
