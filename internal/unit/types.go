package unit

import "context"

// Unit is one atomic piece of translatable text. ID is stable and
// unique within a document and ties the unit back to its position in
// the source; Text is immutable once extracted.
type Unit struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Locked bool   `json:"locked,omitempty"`

	// Translated holds the pipeline output. Locked units carry their
	// source text through unchanged; failed units stay empty with
	// Failed set.
	Translated string `json:"translated,omitempty"`
	Failed     bool   `json:"failed,omitempty"`
}

// Batch is a bounded group of non-locked units submitted to a
// provider together as one logical call. Membership is append-only
// and never reordered.
type Batch struct {
	Index    int
	Units    []Unit
	Attempts int
}

// Texts returns the source texts of the batch in order.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Units))
	for i, u := range b.Units {
		texts[i] = u.Text
	}
	return texts
}

// Extractor produces the ordered unit sequence of a document.
// Format-specific implementations (docx, xlsx, pdf) live outside the
// engine; the engine only consumes (id, text) pairs.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Unit, error)
}

// Reinserter writes translated units back into a copy of the source
// document. It is called only after every batch for the document has
// resolved.
type Reinserter interface {
	Reinsert(ctx context.Context, inputPath, outputPath string, units []Unit) error
}

// Adapter couples extraction and reinsertion for one file format.
type Adapter interface {
	Extractor
	Reinserter
	Suffixes() []string
}
