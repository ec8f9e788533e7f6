package generation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/francis150/tmpltr/internal/template"
)

// pageTitleKey 页面标题的保留键，不参与提示词文本替换
const pageTitleKey = "page_title"

// Substitute 把提示词文本中的字段标识符替换为用户填写的值
//
// 全部标识符一次性编进同一个匹配器做单趟替换：
//   - 长标识符优先，@name 不会截断 @nametag 的匹配
//   - 替换产物不会被后续标识符二次命中，结果与遍历顺序无关
//
// 值缺失的标识符替换为空串；文本中未出现的标识符无影响
func Substitute(promptText string, fieldValues map[string]string) string {
	tokens := make([]string, 0, len(fieldValues))
	normalized := make(map[string]string, len(fieldValues))
	for key, value := range fieldValues {
		if key == pageTitleKey {
			continue
		}
		token := template.NormalizeIdentifier(key)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
		normalized[token] = value
	}
	if len(tokens) == 0 {
		return promptText
	}

	sort.Slice(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })

	escaped := make([]string, len(tokens))
	for i, token := range tokens {
		escaped[i] = regexp.QuoteMeta(token)
	}
	pattern := regexp.MustCompile(strings.Join(escaped, "|"))

	return pattern.ReplaceAllStringFunc(promptText, func(match string) string {
		return normalized[match]
	})
}
