package ecmascript

import (
	"bytes"
	"encoding/json"
)

// StringifyJs renders v as a JavaScript literal.
func StringifyJs(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "undefined"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
