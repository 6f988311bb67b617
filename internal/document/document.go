package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/unit"
)

// adapters in registration order; the first one claiming a suffix wins.
var adapters = []unit.Adapter{
	NewTextAdapter(),
	NewUnitsAdapter(),
}

// ForPath selects the adapter handling the file's extension.
func ForPath(path string) (unit.Adapter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, adapter := range adapters {
		for _, suffix := range adapter.Suffixes() {
			if suffix == ext {
				return adapter, nil
			}
		}
	}
	return nil, fmt.Errorf("unsupported document type %q (%s)", ext, path)
}

// Supported lists the handled file extensions.
func Supported() []string {
	var ret []string
	for _, adapter := range adapters {
		ret = append(ret, adapter.Suffixes()...)
	}
	return ret
}
