package glossary

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/MimeLyc/doc-translator/internal/unit"
)

// Entry is one glossary rule. Lock entries pin a source string so it
// is never sent for translation; force entries rewrite the provider
// output so mandated terminology survives even if the model deviated.
type Entry struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	CaseSensitive bool   `json:"case_sensitive"`
	Lock          bool   `json:"lock"`
}

// Engine applies glossary rules before and after translation.
// Entry order is load order; when several entries match at the same
// text position the longest source wins, then load order.
//
// A term matching both a lock and a force entry is treated as locked:
// the unit bypasses translation entirely.
type Engine struct {
	entries []Entry

	mu   sync.Mutex
	hits map[string]int
}

// New builds an engine from already-parsed entries. Entries with an
// empty source are rejected; duplicate (source, case_sensitive) pairs
// are rejected with a descriptive error. Order is preserved.
func New(entries []Entry) (*Engine, error) {
	seen := make(map[string]int, len(entries))
	kept := make([]Entry, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.Source) == "" {
			return nil, fmt.Errorf("glossary entry %d: source is required", i+1)
		}
		entry.Source = strings.TrimSpace(entry.Source)
		entry.Target = strings.TrimSpace(entry.Target)
		if entry.Target == "" {
			entry.Target = entry.Source
		}
		key := dedupeKey(entry)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("glossary entry %d: duplicate of entry %d (source %q, case_sensitive=%v)",
				i+1, prev+1, entry.Source, entry.CaseSensitive)
		}
		seen[key] = i
		kept = append(kept, entry)
	}
	return &Engine{
		entries: kept,
		hits:    make(map[string]int),
	}, nil
}

// Load reads a glossary from a CSV or JSON file. An empty path yields
// an empty engine (no rules).
func Load(path string) (*Engine, error) {
	if path == "" {
		return New(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary %s: %w", path, err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		entries, err = parseJSON(data)
	default:
		entries, err = parseCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse glossary %s: %w", path, err)
	}
	return New(entries)
}

// Entries returns a copy of the rule list in precedence order.
func (e *Engine) Entries() []Entry {
	return append([]Entry(nil), e.entries...)
}

// ForceEntries returns the non-lock rules in precedence order.
func (e *Engine) ForceEntries() []Entry {
	forced := make([]Entry, 0, len(e.entries))
	for _, entry := range e.entries {
		if !entry.Lock {
			forced = append(forced, entry)
		}
	}
	return forced
}

// Mask marks units whose full source text equals a lock entry.
// Locked units carry their source text through untouched and never
// reach a provider.
func (e *Engine) Mask(units []unit.Unit) []unit.Unit {
	out := append([]unit.Unit(nil), units...)
	for i, u := range out {
		entry, ok := e.matchLock(u.Text)
		if !ok {
			continue
		}
		out[i].Locked = true
		out[i].Translated = u.Text
		e.recordHit(entry)
	}
	return out
}

// LocksText reports whether a lock entry pins the whole text. Unlike
// Mask it records no hits, so callers can pre-filter units without
// inflating the report counters.
func (e *Engine) LocksText(text string) bool {
	_, ok := e.matchLock(text)
	return ok
}

// Enforce substitutes force-entry sources with their targets inside
// translated text of non-locked units. Replacement is literal,
// non-overlapping and leftmost-first; replaced text is never
// re-matched.
func (e *Engine) Enforce(units []unit.Unit) []unit.Unit {
	forced := e.forceIndexes()
	if len(forced) == 0 {
		return units
	}

	out := append([]unit.Unit(nil), units...)
	for i, u := range out {
		if u.Locked || u.Translated == "" {
			continue
		}
		replaced, counts := e.enforceText(u.Translated, forced)
		out[i].Translated = replaced
		for idx, n := range counts {
			e.recordHitN(e.entries[idx], n)
		}
	}
	return out
}

// EnforceText applies force rules to a single string and reports the
// number of substitutions. Hit counters are not touched; this is used
// by the comparator for scoring.
func (e *Engine) EnforceText(text string) (string, int) {
	replaced, counts := e.enforceText(text, e.forceIndexes())
	total := 0
	for _, n := range counts {
		total += n
	}
	return replaced, total
}

// Hits returns accumulated hit counts keyed by entry source.
func (e *Engine) Hits() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]int, len(e.hits))
	for k, v := range e.hits {
		out[k] = v
	}
	return out
}

func (e *Engine) matchLock(text string) (Entry, bool) {
	for _, entry := range e.entries {
		if !entry.Lock {
			continue
		}
		if equalsFold(text, entry.Source, entry.CaseSensitive) {
			return entry, true
		}
	}
	return Entry{}, false
}

// forceIndexes returns entry indexes of force rules ordered for
// matching: longest source first, then load order.
func (e *Engine) forceIndexes() []int {
	idx := make([]int, 0, len(e.entries))
	for i, entry := range e.entries {
		if !entry.Lock {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return len(e.entries[idx[a]].Source) > len(e.entries[idx[b]].Source)
	})
	return idx
}

// enforceText scans text left to right. At each position the first
// matching rule in forced order wins; the scan resumes after the
// inserted target so replacements never overlap.
func (e *Engine) enforceText(text string, forced []int) (string, map[int]int) {
	counts := make(map[int]int)
	if len(forced) == 0 || text == "" {
		return text, counts
	}

	var sb strings.Builder
	pos := 0
	for pos < len(text) {
		matched := false
		for _, idx := range forced {
			entry := e.entries[idx]
			if n := foldPrefixLen(text[pos:], entry.Source, entry.CaseSensitive); n >= 0 {
				sb.WriteString(entry.Target)
				pos += n
				counts[idx]++
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(text[pos])
			pos++
		}
	}
	return sb.String(), counts
}

func (e *Engine) recordHit(entry Entry) {
	e.recordHitN(entry, 1)
}

func (e *Engine) recordHitN(entry Entry, n int) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	e.hits[entry.Source] += n
	e.mu.Unlock()
}

func dedupeKey(entry Entry) string {
	src := entry.Source
	if !entry.CaseSensitive {
		src = strings.ToLower(src)
	}
	return fmt.Sprintf("%s|%v", src, entry.CaseSensitive)
}

func equalsFold(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// foldPrefixLen returns the byte length of the prefix of s matching
// term, or -1. Folded matching compares rune by rune, so case pairs
// whose UTF-8 widths differ (K/k, ſ/s) still line up and the caller
// advances by the matched width rather than the term width.
func foldPrefixLen(s, term string, caseSensitive bool) int {
	if caseSensitive {
		if strings.HasPrefix(s, term) {
			return len(term)
		}
		return -1
	}
	n := 0
	for _, tr := range term {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || !runesFold(r, tr) {
			return -1
		}
		n += size
	}
	return n
}

func runesFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func parseJSON(data []byte) ([]Entry, error) {
	var raw []struct {
		Source        string `json:"source"`
		Target        string `json:"target"`
		CaseSensitive any    `json:"case_sensitive"`
		Lock          any    `json:"lock"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.Source) == "" {
			continue
		}
		entries = append(entries, Entry{
			Source:        item.Source,
			Target:        item.Target,
			CaseSensitive: toBool(item.CaseSensitive),
			Lock:          toBool(item.Lock),
		})
	}
	return entries, nil
}

func parseCSV(data []byte) ([]Entry, error) {
	// Excel exports tend to carry a UTF-8 BOM.
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\uFEFF")))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["source"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "source")
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		source := field(record, "source")
		if source == "" {
			continue
		}
		entries = append(entries, Entry{
			Source:        source,
			Target:        field(record, "target"),
			CaseSensitive: toBool(field(record, "case_sensitive")),
			Lock:          toBool(field(record, "lock")),
		})
	}
	return entries, nil
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}
