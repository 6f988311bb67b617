package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/unit"
)

// TextAdapter handles plain text files line by line. Every line is a
// unit, identified by its 1-based line number; blank lines are kept
// as structure and carried through untranslated.
type TextAdapter struct{}

func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

func (a *TextAdapter) Suffixes() []string {
	return []string{".txt", ".md"}
}

func (a *TextAdapter) Extract(ctx context.Context, path string) ([]unit.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := splitLines(string(data))
	units := make([]unit.Unit, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		units = append(units, unit.Unit{
			ID:   fmt.Sprintf("line-%d", i+1),
			Text: line,
		})
	}
	return units, nil
}

func (a *TextAdapter) Reinsert(ctx context.Context, inputPath, outputPath string, units []unit.Unit) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	translated := make(map[string]string, len(units))
	for _, u := range units {
		if u.Translated != "" {
			translated[u.ID] = u.Translated
		}
	}

	lines := splitLines(string(data))
	for i := range lines {
		if text, ok := translated[fmt.Sprintf("line-%d", i+1)]; ok {
			lines[i] = text
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}

// splitLines splits on \n, tolerating \r\n input.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
