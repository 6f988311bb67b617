package glossary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/doc-translator/internal/unit"
)

func TestNew_RejectsEmptySource(t *testing.T) {
	_, err := New([]Entry{{Source: "  "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]Entry{
		{Source: "GPU", Target: "GPU"},
		{Source: "gpu", Target: "gpu"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNew_AllowsSameSourceDifferentCaseSensitivity(t *testing.T) {
	engine, err := New([]Entry{
		{Source: "GPU", CaseSensitive: true},
		{Source: "GPU", CaseSensitive: false},
	})
	require.NoError(t, err)
	assert.Len(t, engine.Entries(), 2)
}

func TestNew_DefaultsTargetToSource(t *testing.T) {
	engine, err := New([]Entry{{Source: "Kubernetes"}})
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes", engine.Entries()[0].Target)
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.csv")
	content := "\uFEFFsource,target,case_sensitive,lock\n" +
		"GPU,显卡,true,\n" +
		"ACME Corp,,false,yes\n" +
		"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	engine, err := Load(path)
	require.NoError(t, err)

	entries := engine.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Source: "GPU", Target: "显卡", CaseSensitive: true}, entries[0])
	assert.Equal(t, Entry{Source: "ACME Corp", Target: "ACME Corp", Lock: true}, entries[1])
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.json")
	content := `[
		{"source": "latency", "target": "延迟"},
		{"source": "ACME", "lock": true}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	engine, err := Load(path)
	require.NoError(t, err)
	require.Len(t, engine.Entries(), 2)
	assert.True(t, engine.Entries()[1].Lock)
}

func TestLoad_EmptyPathYieldsEmptyEngine(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, engine.Entries())
}

func TestMask_LocksExactMatches(t *testing.T) {
	engine, err := New([]Entry{
		{Source: "ACME Corp", Lock: true},
		{Source: "GPU", Target: "显卡"},
	})
	require.NoError(t, err)

	units := []unit.Unit{
		{ID: "u1", Text: "ACME Corp"},
		{ID: "u2", Text: "acme corp"},
		{ID: "u3", Text: "ACME Corp builds GPUs"},
	}
	masked := engine.Mask(units)

	assert.True(t, masked[0].Locked)
	assert.Equal(t, "ACME Corp", masked[0].Translated)
	// Lock matching folds case by default.
	assert.True(t, masked[1].Locked)
	// Partial containment never locks.
	assert.False(t, masked[2].Locked)

	// Input slice is untouched.
	assert.False(t, units[0].Locked)
}

func TestMask_CaseSensitiveLock(t *testing.T) {
	engine, err := New([]Entry{{Source: "ACME", Lock: true, CaseSensitive: true}})
	require.NoError(t, err)

	masked := engine.Mask([]unit.Unit{{ID: "u1", Text: "acme"}})
	assert.False(t, masked[0].Locked)
}

func TestEnforce_ReplacesForcedTerms(t *testing.T) {
	engine, err := New([]Entry{{Source: "graphics card", Target: "显卡"}})
	require.NoError(t, err)

	units := engine.Enforce([]unit.Unit{
		{ID: "u1", Text: "the graphics card", Translated: "the graphics card is fast"},
	})
	assert.Equal(t, "the 显卡 is fast", units[0].Translated)
	assert.Equal(t, map[string]int{"graphics card": 1}, engine.Hits())
}

func TestEnforce_LongestSourceWinsAtSamePosition(t *testing.T) {
	engine, err := New([]Entry{
		{Source: "GPU", Target: "处理器"},
		{Source: "GPU cluster", Target: "显卡集群"},
	})
	require.NoError(t, err)

	units := engine.Enforce([]unit.Unit{
		{ID: "u1", Text: "x", Translated: "a GPU cluster and a GPU"},
	})
	assert.Equal(t, "a 显卡集群 and a 处理器", units[0].Translated)
}

func TestEnforce_ReplacementsNeverRematch(t *testing.T) {
	// Target contains another rule's source; the scan must not touch
	// already inserted text.
	engine, err := New([]Entry{
		{Source: "cat", Target: "dog"},
		{Source: "dog", Target: "wolf"},
	})
	require.NoError(t, err)

	units := engine.Enforce([]unit.Unit{
		{ID: "u1", Text: "x", Translated: "cat dog"},
	})
	assert.Equal(t, "dog wolf", units[0].Translated)
}

func TestEnforce_SkipsLockedAndUntranslated(t *testing.T) {
	engine, err := New([]Entry{{Source: "a", Target: "b"}})
	require.NoError(t, err)

	units := engine.Enforce([]unit.Unit{
		{ID: "u1", Text: "a", Locked: true, Translated: "a"},
		{ID: "u2", Text: "a", Failed: true},
	})
	assert.Equal(t, "a", units[0].Translated)
	assert.Empty(t, units[1].Translated)
}

func TestEnforce_FoldedMatchSpansByteLengths(t *testing.T) {
	// U+212A (KELVIN SIGN) folds with "k" but is three bytes wide; the
	// scan must match it and advance by the matched width.
	engine, err := New([]Entry{{Source: "kelvin", Target: "开尔文"}})
	require.NoError(t, err)

	units := engine.Enforce([]unit.Unit{
		{ID: "u1", Text: "x", Translated: "\u212Aelvin scale"},
	})
	assert.Equal(t, "开尔文 scale", units[0].Translated)
	assert.Equal(t, map[string]int{"kelvin": 1}, engine.Hits())
}

func TestLocksText_DoesNotRecordHits(t *testing.T) {
	engine, err := New([]Entry{{Source: "ACME", Lock: true}})
	require.NoError(t, err)

	assert.True(t, engine.LocksText("acme"))
	assert.False(t, engine.LocksText("ACME Corp"))
	assert.Empty(t, engine.Hits())
}

func TestEnforceText_DoesNotRecordHits(t *testing.T) {
	engine, err := New([]Entry{{Source: "GPU", Target: "显卡"}})
	require.NoError(t, err)

	replaced, n := engine.EnforceText("GPU and GPU")
	assert.Equal(t, "显卡 and 显卡", replaced)
	assert.Equal(t, 2, n)
	assert.Empty(t, engine.Hits())
}

func TestLockBeatsForce(t *testing.T) {
	// The same term declared as both lock and force: the unit bypasses
	// translation entirely.
	engine, err := New([]Entry{
		{Source: "ACME", Lock: true},
		{Source: "ACME", Target: "阿克米", CaseSensitive: true},
	})
	require.NoError(t, err)

	masked := engine.Mask([]unit.Unit{{ID: "u1", Text: "ACME"}})
	require.True(t, masked[0].Locked)
	assert.Equal(t, "ACME", masked[0].Translated)

	enforced := engine.Enforce(masked)
	assert.Equal(t, "ACME", enforced[0].Translated)
}
