package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranslatedContent_PlainArray(t *testing.T) {
	items, err := parseTranslatedContent(`["你好", "世界"]`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"你好", "世界"}, items)
}

func TestParseTranslatedContent_FencedCodeBlock(t *testing.T) {
	content := "Here you go:\n```json\n[\"a\", \"b\"]\n```\nHope that helps."
	items, err := parseTranslatedContent(content, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, items)
}

func TestParseTranslatedContent_BareFence(t *testing.T) {
	items, err := parseTranslatedContent("```\n[\"a\"]\n```", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, items)
}

func TestParseTranslatedContent_WrapperObjects(t *testing.T) {
	for _, key := range []string{"translations", "result", "data"} {
		content := `{"` + key + `": ["x", "y"]}`
		items, err := parseTranslatedContent(content, 2)
		require.NoError(t, err, key)
		assert.Equal(t, []string{"x", "y"}, items, key)
	}
}

func TestParseTranslatedContent_WrapperStringForSingleItem(t *testing.T) {
	items, err := parseTranslatedContent(`{"result": "你好"}`, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"你好"}, items)
}

func TestParseTranslatedContent_RawTextFallbackForSingleItem(t *testing.T) {
	items, err := parseTranslatedContent("just a sentence, no JSON", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"just a sentence, no JSON"}, items)
}

func TestParseTranslatedContent_NonStringItemsStringified(t *testing.T) {
	items, err := parseTranslatedContent(`["a", 42]`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "42"}, items)
}

func TestParseTranslatedContent_LengthMismatch(t *testing.T) {
	_, err := parseTranslatedContent(`["only one"]`, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length does not match")
}

func TestParseTranslatedContent_Empty(t *testing.T) {
	_, err := parseTranslatedContent("   ", 1)
	require.Error(t, err)
}
