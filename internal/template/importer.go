package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
	"gorm.io/gorm"
)

// ExemplarCreator 导入时创建/更新模板页的协作方接口（由 page.Store 实现）
type ExemplarCreator interface {
	CreateExemplar(ctx context.Context, tx *gorm.DB, title, body, status, authorID string) (string, error)
	UpdateExemplarBody(ctx context.Context, tx *gorm.DB, pageID, body string) error
}

// Importer 打包模板导入器
// 从 JSON 模板包创建模板（含范例页、字段、提示词），并支持按版本更新
type Importer struct {
	db         *gorm.DB
	templates  *Service
	pages      ExemplarCreator
	starterDir string
}

// NewImporter 创建 Importer 实例
func NewImporter(db *gorm.DB, templates *Service, pages ExemplarCreator, starterDir string) *Importer {
	return &Importer{db: db, templates: templates, pages: pages, starterDir: starterDir}
}

// importFile 模板包 JSON 结构
type importFile struct {
	Template struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Name    string `json:"name"`
		Status  string `json:"status"`
		Fields  []struct {
			Identifier   string `json:"identifier"`
			Name         string `json:"name"`
			DefaultValue string `json:"default_value"`
			Required     bool   `json:"required"`
		} `json:"fields"`
		Prompts []struct {
			Title       string  `json:"title"`
			Placeholder string  `json:"placeholder"`
			Guide       string  `json:"guide"`
			Text        string  `json:"text"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
		} `json:"prompts"`
	} `json:"template"`
	Page *struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Status  string `json:"status"`
	} `json:"page"`
}

func parseImportFile(data []byte) (*importFile, error) {
	var file importFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("模板包不是合法的 JSON: %w", err)
	}
	if file.Template.Name == "" || file.Template.Fields == nil || file.Template.Prompts == nil {
		return nil, fmt.Errorf("模板包缺少必需内容")
	}
	return &file, nil
}

// ImportFromJSON 从 JSON 模板包导入
// 同一来源标识只允许导入一次；软删除的旧记录先清除谱系，使重新导入成为可能
func (imp *Importer) ImportFromJSON(ctx context.Context, data []byte, createdBy string) (*Template, error) {
	file, err := parseImportFile(data)
	if err != nil {
		return nil, err
	}

	importID := strings.TrimSpace(file.Template.ID)

	if importID != "" {
		existing, err := imp.templates.FindByImportID(ctx, importID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("该模板包已导入过，请在模板列表中查看")
		}

		// 清除软删除记录上的谱系，避免唯一索引阻止重新导入
		if err := imp.db.WithContext(ctx).Model(&Template{}).
			Where("import_id = ? AND deleted_at IS NOT NULL", importID).
			Update("import_id", nil).Error; err != nil {
			return nil, fmt.Errorf("清理历史导入记录失败: %w", err)
		}
	}

	var tmpl *Template
	err = imp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pageID *string
		if file.Page != nil && file.Page.Title != "" {
			id, err := imp.pages.CreateExemplar(ctx, tx, file.Page.Title, file.Page.Content, file.Page.Status, createdBy)
			if err != nil {
				return fmt.Errorf("创建范例页失败: %w", err)
			}
			pageID = &id
		}

		tmpl = &Template{
			ID:            uuid.New().String(),
			Name:          file.Template.Name,
			Status:        coerceStatus(file.Template.Status),
			PageID:        pageID,
			ImportVersion: file.Template.Version,
			CreatedBy:     createdBy,
		}
		if importID != "" {
			tmpl.ImportID = &importID
		}
		if err := tx.Create(tmpl).Error; err != nil {
			return fmt.Errorf("创建模板记录失败: %w", err)
		}

		if err := saveFieldsTx(tx, tmpl.ID, importFieldInputs(file)); err != nil {
			return err
		}
		if err := savePromptsTx(tx, tmpl.ID, importPromptInputs(file)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tmpl, nil
}

// UpdateInfo 可用更新信息
type UpdateInfo struct {
	TemplateID string `json:"template_id"`
	NewVersion string `json:"new_version"`
	FilePath   string `json:"-"`
}

// AvailableUpdate 检查已导入模板是否有新版本的模板包
// 没有可用更新时返回 nil
func (imp *Importer) AvailableUpdate(ctx context.Context, importID string) (*UpdateInfo, error) {
	path, file, err := imp.findSource(importID)
	if err != nil || file == nil {
		return nil, err
	}
	if file.Template.Version == "" {
		return nil, nil
	}

	tmpl, err := imp.templates.FindByImportID(ctx, importID)
	if err != nil || tmpl == nil {
		return nil, err
	}

	if versionGreater(file.Template.Version, tmpl.ImportVersion) {
		return &UpdateInfo{
			TemplateID: tmpl.ID,
			NewVersion: file.Template.Version,
			FilePath:   path,
		}, nil
	}
	return nil, nil
}

// UpdateImported 用来源模板包刷新已导入模板的字段、提示词与版本
// updateLayoutPage 为 true 时同步更新范例页正文
func (imp *Importer) UpdateImported(ctx context.Context, templateID string, updateLayoutPage bool) error {
	tmpl, err := imp.templates.Get(ctx, templateID)
	if err != nil {
		return err
	}
	if tmpl.ImportID == nil || *tmpl.ImportID == "" {
		return fmt.Errorf("该模板不是导入的模板，无法更新")
	}

	_, file, err := imp.findSource(*tmpl.ImportID)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("找不到来源模板包")
	}

	return imp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveFieldsTx(tx, tmpl.ID, importFieldInputs(file)); err != nil {
			return err
		}
		if err := savePromptsTx(tx, tmpl.ID, importPromptInputs(file)); err != nil {
			return err
		}

		if file.Template.Version != "" {
			if err := tx.Model(&Template{}).Where("id = ?", tmpl.ID).
				Update("import_version", file.Template.Version).Error; err != nil {
				return fmt.Errorf("更新模板版本失败: %w", err)
			}
		}

		if updateLayoutPage && file.Page != nil && file.Page.Content != "" &&
			tmpl.PageID != nil && *tmpl.PageID != "" {
			if err := imp.pages.UpdateExemplarBody(ctx, tx, *tmpl.PageID, file.Page.Content); err != nil {
				return fmt.Errorf("更新范例页失败: %w", err)
			}
		}
		return nil
	})
}

// findSource 在模板包目录中查找指定来源标识的 JSON 文件
func (imp *Importer) findSource(importID string) (string, *importFile, error) {
	if imp.starterDir == "" {
		return "", nil, nil
	}

	entries, err := os.ReadDir(imp.starterDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("读取模板包目录失败: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(imp.starterDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		file, err := parseImportFile(data)
		if err != nil {
			continue
		}
		if strings.TrimSpace(file.Template.ID) == importID {
			return path, file, nil
		}
	}
	return "", nil, nil
}

func importFieldInputs(file *importFile) []FieldInput {
	inputs := make([]FieldInput, 0, len(file.Template.Fields))
	for _, f := range file.Template.Fields {
		inputs = append(inputs, FieldInput{
			Identifier:   f.Identifier,
			Label:        f.Name,
			DefaultValue: f.DefaultValue,
			Required:     f.Required,
		})
	}
	return inputs
}

func importPromptInputs(file *importFile) []PromptInput {
	inputs := make([]PromptInput, 0, len(file.Template.Prompts))
	for _, p := range file.Template.Prompts {
		inputs = append(inputs, PromptInput{
			Title:       p.Title,
			Guide:       p.Guide,
			Placeholder: p.Placeholder,
			Text:        p.Text,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
	}
	return inputs
}

// versionGreater 比较语义化版本，available 比 installed 新时返回 true
func versionGreater(available, installed string) bool {
	if installed == "" {
		return true
	}
	return semver.Compare(canonicalVersion(available), canonicalVersion(installed)) > 0
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
