package template_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/francis150/tmpltr/internal/template"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTemplateTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:template_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "init sqlite failed")

	require.NoError(t, db.AutoMigrate(
		&template.Template{},
		&template.Field{},
		&template.Prompt{},
	))
	return db
}

func createTestTemplate(t *testing.T, svc *template.Service, name string) *template.Template {
	t.Helper()
	tmpl, err := svc.Create(context.Background(), &template.CreateRequest{
		Name:      name,
		CreatedBy: "user-1",
	})
	require.NoError(t, err)
	return tmpl
}

func TestService_Create_CoercesInvalidStatus(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))

	tmpl, err := svc.Create(context.Background(), &template.CreateRequest{
		Name:   "落地页模板",
		Status: "archived",
	})
	require.NoError(t, err)
	assert.Equal(t, template.StatusDraft, tmpl.Status)
}

func TestService_Create_RejectsEmptyName(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))

	_, err := svc.Create(context.Background(), &template.CreateRequest{Name: "   "})
	assert.Error(t, err)
}

func TestService_SaveFields_UpsertKeepsRowIdentity(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "字段调和测试")
	ctx := context.Background()

	inputs := []template.FieldInput{
		{Identifier: "@name", Label: "Name"},
		{Identifier: "@city", Label: "City"},
	}
	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, inputs))

	first, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// 带 ID 重新提交同样内容，行标识保持不变
	again := []template.FieldInput{
		{ID: first[0].ID, Identifier: "@name", Label: "Name"},
		{ID: first[1].ID, Identifier: "@city", Label: "City"},
	}
	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, again))

	second, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
}

func TestService_SaveFields_OrderFollowsSubmission(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "顺序测试")
	ctx := context.Background()

	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{
		{Identifier: "@c", Label: "C"},
		{Identifier: "@a", Label: "A"},
		{Identifier: "@b", Label: "B"},
	}))

	fields, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "@c", fields[0].Identifier)
	assert.Equal(t, "@a", fields[1].Identifier)
	assert.Equal(t, "@b", fields[2].Identifier)
	assert.Equal(t, 0, fields[0].FieldOrder)
	assert.Equal(t, 2, fields[2].FieldOrder)
}

func TestService_SaveFields_OmittedRowsDeleted(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "删除测试")
	ctx := context.Background()

	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{
		{Identifier: "@keep", Label: "Keep"},
		{Identifier: "@drop", Label: "Drop"},
	}))
	fields, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	// 只提交一行，缺席的行被删除
	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{
		{ID: fields[0].ID, Identifier: "@keep", Label: "Keep"},
	}))

	remaining, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "@keep", remaining[0].Identifier)

	// 空列表清空全部
	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{}))
	empty, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_SaveFields_RejectsDuplicateIdentifiers(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "重复标识符")

	err := svc.SaveFields(context.Background(), tmpl.ID, []template.FieldInput{
		{Identifier: "@name", Label: "Name"},
		{Identifier: "@NAME", Label: "Name again"}, // 大小写不敏感去重
	})
	assert.Error(t, err)
}

func TestService_SavePrompts_RejectsDuplicatePlaceholders(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "重复占位符")

	err := svc.SavePrompts(context.Background(), tmpl.ID, []template.PromptInput{
		{Title: "Intro", Placeholder: "{intro}", Text: "a"},
		{Title: "Intro again", Placeholder: "{INTRO}", Text: "b"}, // 大小写不敏感去重
	})
	assert.Error(t, err)
}

func TestService_SavePrompts_AppliesDefaults(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "提示词默认值")
	ctx := context.Background()

	require.NoError(t, svc.SavePrompts(ctx, tmpl.ID, []template.PromptInput{
		{Title: "Intro", Placeholder: "{intro}", Text: "Write an intro"},
	}))

	prompts, err := svc.GetPrompts(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, 1000, prompts[0].MaxTokens)
	assert.InDelta(t, 0.7, prompts[0].Temperature, 0.001)
}

func TestService_Save_NilCollectionsLeaveChildrenUntouched(t *testing.T) {
	svc := template.NewService(setupTemplateTestDB(t))
	tmpl := createTestTemplate(t, svc, "部分保存")
	ctx := context.Background()

	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{
		{Identifier: "@name", Label: "Name"},
	}))

	_, err := svc.Save(ctx, &template.SaveRequest{
		ID:   tmpl.ID,
		Name: "改名后的模板",
	})
	require.NoError(t, err)

	fields, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Len(t, fields, 1, "未提交字段集合时原有字段应保留")

	updated, err := svc.Get(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "改名后的模板", updated.Name)
}

func TestService_SoftDelete_ClearsImportLineage(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	ctx := context.Background()

	tmpl := createTestTemplate(t, svc, "导入的模板")
	importID := "starter-pack-1"
	require.NoError(t, db.Model(&template.Template{}).
		Where("id = ?", tmpl.ID).
		Update("import_id", importID).Error)

	require.NoError(t, svc.SoftDelete(ctx, tmpl.ID))

	// 列表和查询都不再返回
	_, err := svc.Get(ctx, tmpl.ID)
	assert.Error(t, err)

	found, err := svc.FindByImportID(ctx, importID)
	require.NoError(t, err)
	assert.Nil(t, found, "软删除后导入谱系应被清空")

	// 行本身还在，deleted_at 已置位
	var raw template.Template
	require.NoError(t, db.Unscoped().Where("id = ?", tmpl.ID).First(&raw).Error)
	assert.True(t, raw.IsDeleted())
	assert.Nil(t, raw.ImportID)
}

func TestService_Duplicate_CopiesChildrenWithoutLineage(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	ctx := context.Background()

	tmpl := createTestTemplate(t, svc, "原始模板")
	require.NoError(t, db.Model(&template.Template{}).Where("id = ?", tmpl.ID).
		Updates(map[string]any{"import_id": "pack-x", "import_version": "1.0.0", "status": "published"}).Error)
	require.NoError(t, svc.SaveFields(ctx, tmpl.ID, []template.FieldInput{
		{Identifier: "@name", Label: "Name", Required: true},
	}))
	require.NoError(t, svc.SavePrompts(ctx, tmpl.ID, []template.PromptInput{
		{Title: "Intro", Placeholder: "{intro}", Text: "Write about @name"},
	}))

	copy, err := svc.Duplicate(ctx, tmpl.ID, "user-2")
	require.NoError(t, err)

	assert.NotEqual(t, tmpl.ID, copy.ID)
	assert.Equal(t, "原始模板 (Copy)", copy.Name)
	assert.Equal(t, template.StatusDraft, copy.Status, "副本回到草稿状态")
	assert.Nil(t, copy.ImportID, "副本不继承导入谱系")
	assert.Equal(t, "user-2", copy.CreatedBy)

	fields, err := svc.GetFields(ctx, copy.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "@name", fields[0].Identifier)

	prompts, err := svc.GetPrompts(ctx, copy.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "{intro}", prompts[0].Placeholder)
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "@name", template.NormalizeIdentifier("name"))
	assert.Equal(t, "@name", template.NormalizeIdentifier("@name"))
	assert.Equal(t, "@name", template.NormalizeIdentifier("  name  "))
	assert.Equal(t, "", template.NormalizeIdentifier("   "))
}
