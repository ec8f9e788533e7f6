package generation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/francis150/tmpltr/internal/generation"
	"github.com/francis150/tmpltr/internal/page"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupGenerationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:generation_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "init sqlite failed")

	require.NoError(t, db.AutoMigrate(
		&page.Page{},
		&page.PageMeta{},
		&page.PageTerm{},
		&generation.GeneratedPage{},
		&generation.PromptResult{},
	))
	return db
}

func seedLayoutPage(t *testing.T, db *gorm.DB) string {
	t.Helper()
	src := &page.Page{
		ID:      "layout-1",
		Title:   "Layout",
		Content: "<h1>{headline}</h1><section>{about}</section>",
		Status:  "draft",
	}
	require.NoError(t, db.Create(src).Error)
	return src.ID
}

func testOutputs() []generation.PromptOutput {
	return []generation.PromptOutput{
		{PromptID: "p1", Placeholder: "{headline}", Content: "Welcome to Lisbon Plumbing", TokensUsed: 12, ProcessingTimeMs: 800},
		{PromptID: "p2", Placeholder: "{about}", Content: "<p>We fix pipes.</p>", TokensUsed: 80, ProcessingTimeMs: 2100},
	}
}

func TestPersister_Save_EndToEnd(t *testing.T) {
	db := setupGenerationTestDB(t)
	srcID := seedLayoutPage(t, db)

	persister := generation.NewPersister(db, page.NewDuplicator(nil, nil), page.NewStore(db))
	result, err := persister.Save(context.Background(), &generation.SaveInput{
		TemplateID:   "tmpl-1",
		SourcePageID: srcID,
		PageTitle:    "Lisbon Plumbing",
		FieldValues:  map[string]string{"@city": "Lisbon"},
		CreatedBy:    "user-1",
		Outputs:      testOutputs(),
		PromptTexts:  map[string]string{"p1": "headline for Lisbon", "p2": "about for Lisbon"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ResultsCount)
	require.NotEmpty(t, result.PageID)

	// 生成记录：PageID 已回填，字段值已持久化
	record, err := persister.Get(context.Background(), result.GeneratedPageID)
	require.NoError(t, err)
	assert.Equal(t, result.PageID, record.PageID)
	assert.Equal(t, "completed", record.Status)
	assert.Equal(t, "Lisbon", record.FieldValues["@city"])
	require.Len(t, record.Results, 2)
	assert.Equal(t, "headline for Lisbon", findResult(t, record.Results, "p1").PromptTextUsed)

	// 克隆页面：占位符被替换为指向结果行的嵌入引用
	var cloned page.Page
	require.NoError(t, db.Where("id = ?", result.PageID).First(&cloned).Error)
	assert.Equal(t, "Lisbon Plumbing", cloned.Title)
	headlineRef := generation.EmbedRef(findResult(t, record.Results, "p1").ID)
	aboutRef := generation.EmbedRef(findResult(t, record.Results, "p2").ID)
	assert.Equal(t, fmt.Sprintf("<h1>%s</h1><section>%s</section>", headlineRef, aboutRef), cloned.Content)
}

func findResult(t *testing.T, results []generation.PromptResult, promptID string) *generation.PromptResult {
	t.Helper()
	for i := range results {
		if results[i].PromptID == promptID {
			return &results[i]
		}
	}
	t.Fatalf("result for prompt %s not found", promptID)
	return nil
}

// failingDuplicator 总是失败的克隆实现
type failingDuplicator struct{}

func (failingDuplicator) Duplicate(ctx context.Context, tx *gorm.DB, sourcePageID, title, authorID string, placeholders map[string]string) (string, error) {
	return "", fmt.Errorf("克隆失败")
}

func TestPersister_Save_RollsBackOnDuplicateFailure(t *testing.T) {
	db := setupGenerationTestDB(t)
	srcID := seedLayoutPage(t, db)

	persister := generation.NewPersister(db, failingDuplicator{}, page.NewStore(db))
	_, err := persister.Save(context.Background(), &generation.SaveInput{
		TemplateID:   "tmpl-1",
		SourcePageID: srcID,
		PageTitle:    "Doomed",
		Outputs:      testOutputs(),
	})
	require.Error(t, err)

	var recordCount, resultCount int64
	require.NoError(t, db.Model(&generation.GeneratedPage{}).Count(&recordCount).Error)
	require.NoError(t, db.Model(&generation.PromptResult{}).Count(&resultCount).Error)
	assert.Zero(t, recordCount, "事务回滚后不应残留生成记录")
	assert.Zero(t, resultCount, "事务回滚后不应残留结果行")
}

func TestPersister_Delete_RemovesPageAndResults(t *testing.T) {
	db := setupGenerationTestDB(t)
	srcID := seedLayoutPage(t, db)
	ctx := context.Background()

	persister := generation.NewPersister(db, page.NewDuplicator(nil, nil), page.NewStore(db))
	result, err := persister.Save(ctx, &generation.SaveInput{
		TemplateID:   "tmpl-1",
		SourcePageID: srcID,
		PageTitle:    "To Delete",
		Outputs:      testOutputs(),
	})
	require.NoError(t, err)

	require.NoError(t, persister.Delete(ctx, result.GeneratedPageID))

	_, err = persister.Get(ctx, result.GeneratedPageID)
	assert.Error(t, err)

	var pageCount int64
	require.NoError(t, db.Model(&page.Page{}).Where("id = ?", result.PageID).Count(&pageCount).Error)
	assert.Zero(t, pageCount, "克隆页面应一并删除")

	// 范例页不受影响
	var srcCount int64
	require.NoError(t, db.Model(&page.Page{}).Where("id = ?", srcID).Count(&srcCount).Error)
	assert.EqualValues(t, 1, srcCount)
}

func TestPersister_ResultContent(t *testing.T) {
	db := setupGenerationTestDB(t)
	srcID := seedLayoutPage(t, db)
	ctx := context.Background()

	persister := generation.NewPersister(db, page.NewDuplicator(nil, nil), page.NewStore(db))
	result, err := persister.Save(ctx, &generation.SaveInput{
		TemplateID:   "tmpl-1",
		SourcePageID: srcID,
		PageTitle:    "Content Lookup",
		Outputs:      testOutputs(),
	})
	require.NoError(t, err)

	record, err := persister.Get(ctx, result.GeneratedPageID)
	require.NoError(t, err)

	content, err := persister.ResultContent(ctx, findResult(t, record.Results, "p2").ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>We fix pipes.</p>", content)

	_, err = persister.ResultContent(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPersister_List_FiltersByTemplate(t *testing.T) {
	db := setupGenerationTestDB(t)
	srcID := seedLayoutPage(t, db)
	ctx := context.Background()

	persister := generation.NewPersister(db, page.NewDuplicator(nil, nil), page.NewStore(db))
	for _, tmplID := range []string{"tmpl-a", "tmpl-a", "tmpl-b"} {
		_, err := persister.Save(ctx, &generation.SaveInput{
			TemplateID:   tmplID,
			SourcePageID: srcID,
			PageTitle:    "Page",
			Outputs:      testOutputs(),
		})
		require.NoError(t, err)
	}

	records, total, err := persister.List(ctx, "tmpl-a", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, records, 2)

	all, total, err := persister.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)
}
