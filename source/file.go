package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile loads an inventory file, choosing the format by extension:
// .json is read with LoadJSON, anything else with LoadYAML.
func LoadFile(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(bytes.NewReader(data))
	default:
		return LoadYAML(bytes.NewReader(data))
	}
}

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
