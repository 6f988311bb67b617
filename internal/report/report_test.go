package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/doc-translator/internal/comparator"
)

func TestAggregator_FoldsFileResults(t *testing.T) {
	agg := NewAggregator("en", "zh", "gpt-test")

	agg.AddFile(FileResult{
		InputPath:       "a.md",
		Status:          "success",
		UnitsTotal:      10,
		UnitsTranslated: 10,
	})
	agg.AddFile(FileResult{
		InputPath:       "b.md",
		Status:          "partial",
		UnitsTotal:      8,
		UnitsTranslated: 6,
		UnitsFailed:     2,
	})
	agg.AddBatches(3, 1, 0)
	agg.AddBatches(2, 0, 1)

	summary := agg.Summary()
	assert.Equal(t, "en", summary.SourceLang)
	assert.Equal(t, "zh", summary.TargetLang)
	assert.Equal(t, 2, summary.FilesTotal)
	assert.Equal(t, 1, summary.FilesSucceeded)
	assert.Equal(t, 1, summary.FilesFailed)
	assert.Equal(t, 18, summary.UnitsTotal)
	assert.Equal(t, 16, summary.UnitsTranslated)
	assert.Equal(t, 2, summary.UnitsFailed)
	assert.Equal(t, 5, summary.BatchesAttempted)
	assert.Equal(t, 1, summary.BatchesRetried)
	assert.Equal(t, 1, summary.BatchesFailed)
	require.Len(t, summary.Results, 2)
}

func TestAggregator_HasFailures(t *testing.T) {
	agg := NewAggregator("en", "zh", "m")
	assert.False(t, agg.HasFailures())

	agg.AddFile(FileResult{Status: "success", UnitsTotal: 1, UnitsTranslated: 1})
	assert.False(t, agg.HasFailures())

	agg.AddFile(FileResult{Status: "partial", UnitsTotal: 2, UnitsTranslated: 1, UnitsFailed: 1})
	assert.True(t, agg.HasFailures())
}

func TestAggregator_SetModelAndComparison(t *testing.T) {
	agg := NewAggregator("en", "zh", "configured")
	agg.SetComparison([]comparator.Result{{ProfileName: "winner", Score: 0.9}})
	agg.SetModel("winner-model")

	summary := agg.Summary()
	assert.Equal(t, "winner-model", summary.Model)
	require.Len(t, summary.Comparison, 1)
	assert.Equal(t, "winner", summary.Comparison[0].ProfileName)
}

func TestAggregator_SetGlossaryHitsCopies(t *testing.T) {
	agg := NewAggregator("en", "zh", "m")
	hits := map[string]int{"GPU": 3}
	agg.SetGlossaryHits(hits)
	hits["GPU"] = 99

	assert.Equal(t, 3, agg.Summary().GlossaryHits["GPU"])

	empty := NewAggregator("en", "zh", "m")
	empty.SetGlossaryHits(nil)
	assert.Nil(t, empty.Summary().GlossaryHits)
}

func TestAggregator_SummaryIsSnapshot(t *testing.T) {
	agg := NewAggregator("en", "zh", "m")
	agg.AddFile(FileResult{Status: "success", UnitsTotal: 1, UnitsTranslated: 1})

	snapshot := agg.Summary()
	agg.AddFile(FileResult{Status: "success", UnitsTotal: 1, UnitsTranslated: 1})
	assert.Len(t, snapshot.Results, 1)
}

func TestWrite_AtomicJSON(t *testing.T) {
	agg := NewAggregator("en", "zh", "m")
	agg.AddFile(FileResult{InputPath: "a.md", Status: "success", UnitsTotal: 1, UnitsTranslated: 1})

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, agg.Write(path))

	// No temp file is left behind.
	_, err := os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 1, summary.FilesTotal)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "a.md", summary.Results[0].InputPath)
}
