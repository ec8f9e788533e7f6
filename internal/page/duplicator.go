package page

import (
	"context"
	"fmt"
	"strings"

	"github.com/francis150/tmpltr/internal/logger"
	"github.com/francis150/tmpltr/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 元数据键分类表
// ============================================================================

// MetaStrategy 元数据键的处理策略
type MetaStrategy string

const (
	// StrategySkip 不复制：易变的锁/编辑会话标记，复制到新页面会产生虚假锁定状态
	StrategySkip MetaStrategy = "skip"
	// StrategyBuilder 构建器数据：正常复制并替换，同时记录家族用于渲染缓存清理
	StrategyBuilder MetaStrategy = "builder"
)

// MetaRule 元数据键分类规则
// Pattern 为精确键名，或以 * 结尾的前缀模式
type MetaRule struct {
	Pattern  string
	Strategy MetaStrategy
	Family   string // 构建器家族（elementor, beaver, divi, ...）
}

// Matches 判断键名是否命中规则
func (r MetaRule) Matches(key string) bool {
	if strings.HasSuffix(r.Pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(r.Pattern, "*"))
	}
	return key == r.Pattern
}

// DefaultMetaRules 默认分类表
// 数据驱动：新构建器家族只需追加规则，合并引擎本身无需改动
func DefaultMetaRules() []MetaRule {
	return []MetaRule{
		// 易变标记，不复制
		{Pattern: "_edit_lock", Strategy: StrategySkip},
		{Pattern: "_edit_last", Strategy: StrategySkip},
		{Pattern: "_wp_old_slug", Strategy: StrategySkip},

		// 构建器数据键
		{Pattern: "_elementor_*", Strategy: StrategyBuilder, Family: "elementor"},
		{Pattern: "_fl_builder_*", Strategy: StrategyBuilder, Family: "beaver"},
		{Pattern: "_et_pb_*", Strategy: StrategyBuilder, Family: "divi"},
		{Pattern: "_et_builder_version", Strategy: StrategyBuilder, Family: "divi"},
		{Pattern: "ct_builder_*", Strategy: StrategyBuilder, Family: "oxygen"},
		{Pattern: "_ct_builder_*", Strategy: StrategyBuilder, Family: "oxygen"},
		{Pattern: "ct_other_template", Strategy: StrategyBuilder, Family: "oxygen"},
		{Pattern: "_ct_other_template", Strategy: StrategyBuilder, Family: "oxygen"},
		{Pattern: "_wpb_*", Strategy: StrategyBuilder, Family: "wpbakery"},
		{Pattern: "_fusion_*", Strategy: StrategyBuilder, Family: "fusion"},
		{Pattern: "fusion_builder_status", Strategy: StrategyBuilder, Family: "fusion"},
		{Pattern: "_bricks_*", Strategy: StrategyBuilder, Family: "bricks"},
		{Pattern: "brizy_*", Strategy: StrategyBuilder, Family: "brizy"},
		{Pattern: "brizy-post", Strategy: StrategyBuilder, Family: "brizy"},
	}
}

// ============================================================================
// 内容合并引擎
// ============================================================================

// Duplicator 内容合并引擎
// 克隆范例页面，并把占位符替换为嵌入引用——正文和嵌套元数据都要触达
type Duplicator struct {
	rules []MetaRule
	cache RenderCache
}

// NewDuplicator 创建 Duplicator 实例
// rules 为 nil 时使用默认分类表；cache 为 nil 时缓存清理退化为空操作
func NewDuplicator(rules []MetaRule, cache RenderCache) *Duplicator {
	if rules == nil {
		rules = DefaultMetaRules()
	}
	if cache == nil {
		cache = NopRenderCache{}
	}
	return &Duplicator{rules: rules, cache: cache}
}

// Duplicate 在给定事务内克隆页面并重写占位符
// placeholders: 占位符 → 嵌入引用。找不到占位符不算错误（无匹配即无操作）
// 返回新页面 ID；任何数据库失败都向上传播，由外层事务整体回滚
func (d *Duplicator) Duplicate(ctx context.Context, tx *gorm.DB, sourcePageID, title, authorID string, placeholders map[string]string) (string, error) {
	var source Page
	if err := tx.Where("id = ?", sourcePageID).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", fmt.Errorf("范例页面不存在")
		}
		return "", fmt.Errorf("查询范例页面失败: %w", err)
	}

	replacer := NewReplacer(placeholders)

	newPage := &Page{
		ID:            uuid.New().String(),
		Title:         title,
		Content:       replacer.Replace(source.Content),
		Excerpt:       source.Excerpt,
		Status:        "publish",
		AuthorID:      authorID,
		ParentID:      source.ParentID,
		MenuOrder:     source.MenuOrder,
		CommentStatus: source.CommentStatus,
		PingStatus:    source.PingStatus,
	}
	if err := tx.Create(newPage).Error; err != nil {
		return "", fmt.Errorf("创建页面失败: %w", err)
	}

	families, err := d.copyMeta(tx, source.ID, newPage.ID, replacer)
	if err != nil {
		return "", err
	}

	if err := copyTerms(tx, source.ID, newPage.ID); err != nil {
		return "", err
	}

	// 收尾清理：渲染缓存失效是尽力而为的旁路调用，
	// 每个家族单独隔离失败，不允许影响合并结果
	for family := range families {
		if err := d.cache.Clear(ctx, newPage.ID, family); err != nil {
			logger.WithContext(ctx).Warn("渲染缓存清理失败",
				zap.String("pageId", newPage.ID),
				zap.String("family", family),
				zap.Error(err),
			)
		}
	}

	metrics.PagesDuplicatedTotal.Inc()
	return newPage.ID, nil
}

// copyMeta 复制元数据行，替换触达每一层嵌套，返回命中的构建器家族集合
func (d *Duplicator) copyMeta(tx *gorm.DB, sourceID, destID string, replacer *Replacer) (map[string]struct{}, error) {
	var rows []PageMeta
	if err := tx.Where("page_id = ?", sourceID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询页面元数据失败: %w", err)
	}

	families := make(map[string]struct{})

	for _, row := range rows {
		rule, matched := d.classify(row.MetaKey)
		if matched && rule.Strategy == StrategySkip {
			continue
		}
		if matched && rule.Strategy == StrategyBuilder && rule.Family != "" {
			families[rule.Family] = struct{}{}
		}

		copied := &PageMeta{
			ID:        uuid.New().String(),
			PageID:    destID,
			MetaKey:   row.MetaKey,
			MetaValue: RewriteValue(row.MetaValue, replacer.Replace),
		}
		if err := tx.Create(copied).Error; err != nil {
			return nil, fmt.Errorf("复制页面元数据失败: %w", err)
		}
	}

	return families, nil
}

func (d *Duplicator) classify(key string) (MetaRule, bool) {
	for _, rule := range d.rules {
		if rule.Matches(key) {
			return rule, true
		}
	}
	return MetaRule{}, false
}

// copyTerms 复制分类法关联
func copyTerms(tx *gorm.DB, sourceID, destID string) error {
	var terms []PageTerm
	if err := tx.Where("page_id = ?", sourceID).Find(&terms).Error; err != nil {
		return fmt.Errorf("查询分类法关联失败: %w", err)
	}

	for _, term := range terms {
		copied := &PageTerm{
			ID:       uuid.New().String(),
			PageID:   destID,
			Taxonomy: term.Taxonomy,
			TermID:   term.TermID,
		}
		if err := tx.Create(copied).Error; err != nil {
			return fmt.Errorf("复制分类法关联失败: %w", err)
		}
	}
	return nil
}
