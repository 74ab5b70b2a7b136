package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/maruel/recdb/internal/record"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML sequences of mappings.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() Format {
	return YAML
}

// Parse reads a YAML sequence of mappings. An empty document yields no records.
func (c *YAMLCodec) Parse(r io.Reader) ([]record.Record, error) {
	var recs []record.Record
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&recs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i, rec := range recs {
		if rec == nil {
			return nil, fmt.Errorf("failed to parse YAML: element %d is not a mapping", i)
		}
	}
	return recs, nil
}

// Export writes a YAML sequence of mappings.
func (c *YAMLCodec) Export(w io.Writer, recs []record.Record, _ Options) error {
	if recs == nil {
		recs = []record.Record{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
