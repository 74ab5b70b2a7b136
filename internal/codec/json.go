package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/maruel/recdb/internal/record"
)

// JSONCodec handles JSON arrays of objects.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() Format {
	return JSON
}

// Parse reads a JSON array of objects.
func (c *JSONCodec) Parse(r io.Reader) ([]record.Record, error) {
	var recs []record.Record
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	for i, rec := range recs {
		if rec == nil {
			return nil, fmt.Errorf("failed to parse JSON: element %d is not an object", i)
		}
	}
	return recs, nil
}

// Export writes a JSON array indented with two spaces.
func (c *JSONCodec) Export(w io.Writer, recs []record.Record, _ Options) error {
	if recs == nil {
		recs = []record.Record{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
