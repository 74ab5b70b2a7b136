// Loads initial records used to populate empty sources.

package schema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/maruel/recdb/internal/record"
)

//go:embed seeds/*.json
var seedFS embed.FS

// Seeds maps a source identifier to its initial records.
type Seeds map[string][]record.Record

// DefaultSeeds returns the seed records bundled with the default declaration.
func DefaultSeeds(reg *Registry) (Seeds, error) {
	sub, err := fs.Sub(seedFS, "seeds")
	if err != nil {
		return nil, err
	}
	return LoadSeeds(sub, reg)
}

// LoadSeeds reads "<source>.json" files from fsys for every source of reg. Missing files
// are skipped; a malformed file is an error.
func LoadSeeds(fsys fs.FS, reg *Registry) (Seeds, error) {
	out := Seeds{}
	for _, id := range reg.IDs() {
		name := id + ".json"
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read seed %s: %w", name, err)
		}
		var rows []record.Record
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse seed %s: %w", name, err)
		}
		out[id] = rows
	}
	return out, nil
}

// LoadSeedDir is LoadSeeds over a directory on disk.
func LoadSeedDir(dir string, reg *Registry) (Seeds, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	return LoadSeeds(os.DirFS(dir), reg)
}
