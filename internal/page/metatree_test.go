package page_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/francis150/tmpltr/internal/page"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(s string) string { return strings.ToUpper(s) }

func TestRewriteValue_PlainString(t *testing.T) {
	got := page.RewriteValue("hello {tag} world", func(s string) string {
		return strings.ReplaceAll(s, "{tag}", "X")
	})
	assert.Equal(t, "hello X world", got)
}

func TestRewriteValue_NestedStructure(t *testing.T) {
	raw := `{"layout":{"sections":["{prompt_1}","static text"]},"count":3}`
	got := page.RewriteValue(raw, func(s string) string {
		return strings.ReplaceAll(s, "{prompt_1}", "generated")
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))

	layout := decoded["layout"].(map[string]any)
	sections := layout["sections"].([]any)
	assert.Equal(t, "generated", sections[0])
	assert.Equal(t, "static text", sections[1])
	// 非字符串标量原样保留，数字不因重编码改变
	assert.Contains(t, got, `"count":3`)
}

func TestRewriteValue_DoublyEncoded(t *testing.T) {
	inner := `{"title":"{headline}"}`
	outer, err := json.Marshal(map[string]string{"payload": inner})
	require.NoError(t, err)

	got := page.RewriteValue(string(outer), func(s string) string {
		return strings.ReplaceAll(s, "{headline}", "Big News")
	})

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))

	var innerDecoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(decoded["payload"]), &innerDecoded))
	assert.Equal(t, "Big News", innerDecoded["title"])
}

func TestRewriteValue_ScalarJSONTreatedAsText(t *testing.T) {
	// "123"、"true" 是合法 JSON 但不是结构化数据，按普通文本处理
	assert.Equal(t, "123", page.RewriteValue("123", upper))
	assert.Equal(t, "TRUE", page.RewriteValue("true", upper))
}

func TestRewriteValue_MalformedJSONFallsBackToText(t *testing.T) {
	raw := `{"broken": `
	got := page.RewriteValue(raw, func(s string) string {
		return strings.ReplaceAll(s, "broken", "fixed")
	})
	assert.Equal(t, `{"fixed": `, got)
}

func TestRewriteValue_TrailingContentNotStructured(t *testing.T) {
	raw := `{"a":1} trailing`
	got := page.RewriteValue(raw, upper)
	assert.Equal(t, strings.ToUpper(raw), got)
}

func TestRewriteValue_PreservesHTMLCharacters(t *testing.T) {
	raw := `{"content":"<div class=\"hero\">{tag}</div>"}`
	got := page.RewriteValue(raw, func(s string) string {
		return strings.ReplaceAll(s, "{tag}", "<p>done</p>")
	})
	assert.Contains(t, got, "<div")
	assert.Contains(t, got, "<p>done</p>")
	assert.NotContains(t, got, `\u003c`, "重编码不能转义 HTML 字符")
}

func TestReplacer_SinglePass(t *testing.T) {
	r := page.NewReplacer(map[string]string{
		"{a}": "{b}",
		"{b}": "final",
	})
	// {a} 的替换产物 {b} 不会被二次替换
	assert.Equal(t, "{b} final", r.Replace("{a} {b}"))
}

func TestReplacer_LongestTokenWins(t *testing.T) {
	r := page.NewReplacer(map[string]string{
		"{name}":    "short",
		"{nametag}": "long",
	})
	assert.Equal(t, "long short", r.Replace("{nametag} {name}"))
}

func TestReplacer_EscapesMetaCharacters(t *testing.T) {
	r := page.NewReplacer(map[string]string{"{a.b*}": "v"})
	assert.Equal(t, "v", r.Replace("{a.b*}"))
	assert.Equal(t, "{aXbY}", r.Replace("{aXbY}"), "点号不应按正则通配匹配")
}

func TestReplacer_EmptyMapNoOp(t *testing.T) {
	r := page.NewReplacer(nil)
	assert.Equal(t, "unchanged {x}", r.Replace("unchanged {x}"))
}
