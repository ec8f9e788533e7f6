package page

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// ============================================================================
// 元数据值的标记变体树
//
// 页面元数据值可能是普通字符串、嵌套结构（对象/数组），甚至是构建器插件
// 二次编码后的 JSON 字符串。把值解析成显式的变体树后，递归替换逻辑可以
// 穷举每种形态，而不必在运行时反复做类型探测
// ============================================================================

// Node 元数据值树节点
type Node interface {
	// Rewrite 对树中每个字符串叶子应用替换函数，返回重写后的节点
	Rewrite(replace func(string) string) Node
	// toAny 还原为可序列化的值
	toAny() any
}

// Leaf 普通字符串叶子
type Leaf string

// EncodedLeaf 可结构化解码的字符串叶子：解码后的结构挂在 Inner 上，
// 重写后重新编码回字符串，使替换能触达二次编码的占位符
type EncodedLeaf struct {
	Inner Node
}

// MapNode 对象节点
type MapNode map[string]Node

// ListNode 数组节点
type ListNode []Node

// ScalarLeaf 非字符串标量（数字/布尔/null），原样保留
type ScalarLeaf struct {
	Value any
}

func (l Leaf) Rewrite(replace func(string) string) Node {
	return Leaf(replace(string(l)))
}

func (l Leaf) toAny() any { return string(l) }

func (e EncodedLeaf) Rewrite(replace func(string) string) Node {
	return EncodedLeaf{Inner: e.Inner.Rewrite(replace)}
}

func (e EncodedLeaf) toAny() any {
	data, err := marshalNoEscape(e.Inner.toAny())
	if err != nil {
		// 理论上不可达：树由合法 JSON 构建而来
		return ""
	}
	return data
}

func (m MapNode) Rewrite(replace func(string) string) Node {
	out := make(MapNode, len(m))
	for k, v := range m {
		out[k] = v.Rewrite(replace)
	}
	return out
}

func (m MapNode) toAny() any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.toAny()
	}
	return out
}

func (l ListNode) Rewrite(replace func(string) string) Node {
	out := make(ListNode, len(l))
	for i, v := range l {
		out[i] = v.Rewrite(replace)
	}
	return out
}

func (l ListNode) toAny() any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v.toAny()
	}
	return out
}

func (s ScalarLeaf) Rewrite(replace func(string) string) Node { return s }

func (s ScalarLeaf) toAny() any { return s.Value }

// ParseValue 把元数据原始字符串解析为变体树
// 只有对象/数组形态的合法 JSON 才视为结构化数据；解码失败退化为普通叶子
func ParseValue(raw string) Node {
	if decoded, ok := decodeStructured(raw); ok {
		return EncodedLeaf{Inner: fromAny(decoded)}
	}
	return Leaf(raw)
}

// RewriteValue 对单个元数据值执行占位符重写
// 结构化值递归到每个字符串叶子后重新编码；普通字符串做纯文本替换
func RewriteValue(raw string, replace func(string) string) string {
	node := ParseValue(raw)
	rewritten := node.Rewrite(replace)

	if encoded, ok := rewritten.(EncodedLeaf); ok {
		if s, isStr := encoded.toAny().(string); isStr {
			return s
		}
	}
	return string(rewritten.(Leaf))
}

func fromAny(v any) Node {
	switch val := v.(type) {
	case string:
		// 叶子字符串可能再嵌一层编码结构
		if decoded, ok := decodeStructured(val); ok {
			return EncodedLeaf{Inner: fromAny(decoded)}
		}
		return Leaf(val)
	case map[string]any:
		node := make(MapNode, len(val))
		for k, item := range val {
			node[k] = fromAny(item)
		}
		return node
	case []any:
		node := make(ListNode, len(val))
		for i, item := range val {
			node[i] = fromAny(item)
		}
		return node
	default:
		return ScalarLeaf{Value: val}
	}
}

// decodeStructured 尝试把字符串解码为对象或数组
// 标量 JSON（如 "123"、"true"）不算结构化数据，避免误改普通文本
func decodeStructured(raw string) (any, bool) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 2 {
		return nil, false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, false
	}

	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.UseNumber() // 保持数字原始精度，重编码不失真

	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, false
	}
	// 尾部有多余内容说明不是单个完整 JSON 值
	if decoder.More() {
		return nil, false
	}
	return decoded, true
}

// marshalNoEscape 不转义 HTML 字符的 JSON 序列化
// 构建器数据里常见 <div> 之类的标记，重编码不能引入 <
func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	// Encoder 会追加换行
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ============================================================================
// 占位符替换器
// ============================================================================

// Replacer 占位符替换器
// 一次性把全部占位符编进一个匹配器，保证单趟替换且与顺序无关；
// 占位符文本先转义再参与构建，普通标点不会被当作模式元字符
type Replacer struct {
	pattern      *regexp.Regexp
	replacements map[string]string
}

// NewReplacer 由占位符→替换内容映射构建替换器
func NewReplacer(replacements map[string]string) *Replacer {
	if len(replacements) == 0 {
		return &Replacer{replacements: replacements}
	}

	tags := make([]string, 0, len(replacements))
	for tag := range replacements {
		tags = append(tags, tag)
	}
	// 长标签优先，短标签是长标签前缀时不会截断匹配
	sort.Slice(tags, func(i, j int) bool { return len(tags[i]) > len(tags[j]) })

	escaped := make([]string, len(tags))
	for i, tag := range tags {
		escaped[i] = regexp.QuoteMeta(tag)
	}

	return &Replacer{
		pattern:      regexp.MustCompile(strings.Join(escaped, "|")),
		replacements: replacements,
	}
}

// Replace 精确（区分大小写）替换文本中的全部占位符出现
func (r *Replacer) Replace(text string) string {
	if r.pattern == nil {
		return text
	}
	return r.pattern.ReplaceAllStringFunc(text, func(match string) string {
		return r.replacements[match]
	})
}
