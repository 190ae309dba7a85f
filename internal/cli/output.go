package cli

import (
	"encoding/json"
	"io"
)

// writeJSON prints a command result as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
