package page

import (
	"github.com/francis150/tmpltr/internal/common"
)

// Page 内容项（页面）
// 正文之外的开放式元数据存放在 PageMeta 行中
type Page struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	Title   string `json:"title" gorm:"size:255;not null"`
	Content string `json:"content" gorm:"type:text"`
	Excerpt string `json:"excerpt" gorm:"type:text"`
	Status  string `json:"status" gorm:"size:20;not null;default:draft;index"`

	AuthorID string  `json:"authorId" gorm:"size:100;index"`
	ParentID *string `json:"parentId" gorm:"type:uuid;index"`

	MenuOrder     int    `json:"menuOrder" gorm:"default:0"`
	CommentStatus string `json:"commentStatus" gorm:"size:20;default:closed"`
	PingStatus    string `json:"pingStatus" gorm:"size:20;default:closed"`

	common.TimestampModel
}

func (Page) TableName() string {
	return "pages"
}

// PageMeta 页面元数据行（开放式键值对）
// 值可能是普通字符串，也可能是构建器插件写入的 JSON 序列化结构
type PageMeta struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	PageID    string `json:"pageId" gorm:"type:uuid;not null;index"`
	MetaKey   string `json:"metaKey" gorm:"size:255;not null;index"`
	MetaValue string `json:"metaValue" gorm:"type:text"`
}

func (PageMeta) TableName() string {
	return "page_meta"
}

// PageTerm 页面与分类法条目的关联
type PageTerm struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	PageID   string `json:"pageId" gorm:"type:uuid;not null;index"`
	Taxonomy string `json:"taxonomy" gorm:"size:100;not null"`
	TermID   string `json:"termId" gorm:"size:100;not null"`
}

func (PageTerm) TableName() string {
	return "page_terms"
}
