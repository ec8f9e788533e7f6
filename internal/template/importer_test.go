package template_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/francis150/tmpltr/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeExemplarPages 测试用范例页协作方
type fakeExemplarPages struct {
	nextID  int
	created map[string]string // pageID -> content
	updated map[string]string // pageID -> new content
}

func newFakeExemplarPages() *fakeExemplarPages {
	return &fakeExemplarPages{
		created: make(map[string]string),
		updated: make(map[string]string),
	}
}

func (f *fakeExemplarPages) CreateExemplar(ctx context.Context, tx *gorm.DB, title, body, status, authorID string) (string, error) {
	f.nextID++
	id := fmt.Sprintf("page-%d", f.nextID)
	f.created[id] = body
	return id, nil
}

func (f *fakeExemplarPages) UpdateExemplarBody(ctx context.Context, tx *gorm.DB, pageID, body string) error {
	f.updated[pageID] = body
	return nil
}

const packV1 = `{
  "template": {
    "id": "starter-pack",
    "version": "1.0.0",
    "name": "Starter",
    "status": "published",
    "fields": [
      {"identifier": "@name", "name": "Name", "required": true}
    ],
    "prompts": [
      {"title": "Intro", "placeholder": "{intro}", "text": "Write about @name", "max_tokens": 500, "temperature": 0.5}
    ]
  },
  "page": {"title": "Starter Layout", "content": "<div>{intro}</div>", "status": "draft"}
}`

const packV2 = `{
  "template": {
    "id": "starter-pack",
    "version": "2.0.0",
    "name": "Starter",
    "status": "published",
    "fields": [
      {"identifier": "@name", "name": "Name", "required": true},
      {"identifier": "@city", "name": "City", "required": false}
    ],
    "prompts": [
      {"title": "Intro", "placeholder": "{intro}", "text": "Write about @name in @city"}
    ]
  },
  "page": {"title": "Starter Layout", "content": "<section>{intro}</section>", "status": "draft"}
}`

func TestImporter_ImportFromJSON(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	pages := newFakeExemplarPages()
	imp := template.NewImporter(db, svc, pages, "")
	ctx := context.Background()

	tmpl, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Starter", tmpl.Name)
	assert.Equal(t, template.StatusPublished, tmpl.Status)
	require.NotNil(t, tmpl.ImportID)
	assert.Equal(t, "starter-pack", *tmpl.ImportID)
	assert.Equal(t, "1.0.0", tmpl.ImportVersion)
	require.NotNil(t, tmpl.PageID)
	assert.Equal(t, "<div>{intro}</div>", pages.created[*tmpl.PageID])

	fields, err := svc.GetFields(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "@name", fields[0].Identifier)
	assert.True(t, fields[0].Required)

	prompts, err := svc.GetPrompts(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, 500, prompts[0].MaxTokens)
	assert.InDelta(t, 0.5, prompts[0].Temperature, 0.001)
}

func TestImporter_ImportFromJSON_RejectsDoubleImport(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	imp := template.NewImporter(db, svc, newFakeExemplarPages(), "")
	ctx := context.Background()

	_, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)

	_, err = imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	assert.Error(t, err)
}

func TestImporter_ImportFromJSON_AllowsReimportAfterSoftDelete(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	imp := template.NewImporter(db, svc, newFakeExemplarPages(), "")
	ctx := context.Background()

	first, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, first.ID))

	second, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestImporter_ImportFromJSON_RejectsMalformedPack(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	imp := template.NewImporter(db, svc, newFakeExemplarPages(), "")

	_, err := imp.ImportFromJSON(context.Background(), []byte(`{"template":{"name":"x"}}`), "user-1")
	assert.Error(t, err, "缺少 fields/prompts 的模板包应被拒绝")

	_, err = imp.ImportFromJSON(context.Background(), []byte(`not json`), "user-1")
	assert.Error(t, err)
}

func TestImporter_AvailableUpdate(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	pages := newFakeExemplarPages()

	starterDir := t.TempDir()
	imp := template.NewImporter(db, svc, pages, starterDir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(starterDir, "starter.json"), []byte(packV1), 0o644))
	tmpl, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)

	// 同版本：无可用更新
	info, err := imp.AvailableUpdate(ctx, "starter-pack")
	require.NoError(t, err)
	assert.Nil(t, info)

	// 目录里出现更高版本
	require.NoError(t, os.WriteFile(filepath.Join(starterDir, "starter.json"), []byte(packV2), 0o644))
	info, err = imp.AvailableUpdate(ctx, "starter-pack")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, tmpl.ID, info.TemplateID)
	assert.Equal(t, "2.0.0", info.NewVersion)
}

func TestImporter_UpdateImported(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	pages := newFakeExemplarPages()

	starterDir := t.TempDir()
	imp := template.NewImporter(db, svc, pages, starterDir)
	ctx := context.Background()

	tmpl, err := imp.ImportFromJSON(ctx, []byte(packV1), "user-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(starterDir, "starter.json"), []byte(packV2), 0o644))

	require.NoError(t, imp.UpdateImported(ctx, tmpl.ID, true))

	updated, err := svc.GetWithChildren(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", updated.ImportVersion)
	assert.Len(t, updated.Fields, 2)
	assert.Equal(t, "<section>{intro}</section>", pages.updated[*tmpl.PageID])

	// 提示词默认值在更新路径同样生效
	require.Len(t, updated.Prompts, 1)
	assert.Equal(t, 1000, updated.Prompts[0].MaxTokens)
}

func TestImporter_UpdateImported_RejectsNonImported(t *testing.T) {
	db := setupTemplateTestDB(t)
	svc := template.NewService(db)
	imp := template.NewImporter(db, svc, newFakeExemplarPages(), t.TempDir())

	tmpl := createTestTemplate(t, svc, "手工模板")
	err := imp.UpdateImported(context.Background(), tmpl.ID, false)
	assert.Error(t, err)
}
