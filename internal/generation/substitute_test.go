package generation_test

import (
	"testing"

	"github.com/francis150/tmpltr/internal/generation"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute_BasicReplacement(t *testing.T) {
	got := generation.Substitute("Write about @name in @city", map[string]string{
		"@name": "Acme",
		"@city": "Lisbon",
	})
	assert.Equal(t, "Write about Acme in Lisbon", got)
}

func TestSubstitute_PrefixTokensDoNotCollide(t *testing.T) {
	got := generation.Substitute("@nametag and @name", map[string]string{
		"@name":    "Acme",
		"@nametag": "Badge",
	})
	assert.Equal(t, "Badge and Acme", got)
}

func TestSubstitute_ReplacementNotRescanned(t *testing.T) {
	// @a 的值包含 @b，但单趟替换不会再碰它
	got := generation.Substitute("@a @b", map[string]string{
		"@a": "@b",
		"@b": "final",
	})
	assert.Equal(t, "@b final", got)
}

func TestSubstitute_MissingValueBecomesEmpty(t *testing.T) {
	got := generation.Substitute("Hello @name!", map[string]string{
		"@name": "",
	})
	assert.Equal(t, "Hello !", got)
}

func TestSubstitute_UnknownTokensUntouched(t *testing.T) {
	got := generation.Substitute("Hello @stranger", map[string]string{
		"@name": "Acme",
	})
	assert.Equal(t, "Hello @stranger", got)
}

func TestSubstitute_PageTitleKeySkipped(t *testing.T) {
	got := generation.Substitute("Title is page_title literal", map[string]string{
		"page_title": "My Page",
	})
	assert.Equal(t, "Title is page_title literal", got)
}

func TestSubstitute_KeysNormalizedToPrefixed(t *testing.T) {
	// 传入无 @ 前缀的键同样命中文本中的 @ 标识符
	got := generation.Substitute("Hi @name", map[string]string{
		"name": "Acme",
	})
	assert.Equal(t, "Hi Acme", got)
}

func TestSubstitute_RepeatedOccurrences(t *testing.T) {
	got := generation.Substitute("@city, @city, @city", map[string]string{
		"@city": "Lisbon",
	})
	assert.Equal(t, "Lisbon, Lisbon, Lisbon", got)
}

func TestSubstitute_EmptyValues(t *testing.T) {
	assert.Equal(t, "text", generation.Substitute("text", nil))
	assert.Equal(t, "", generation.Substitute("", map[string]string{"@a": "x"}))
}
