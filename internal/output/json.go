package output

import (
	"encoding/json"
	"io"

	"github.com/hal/prflow/internal/service"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// Write outputs the full result as JSON
func (f *JSONFormatter) Write(res *service.Result, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(res)
}
