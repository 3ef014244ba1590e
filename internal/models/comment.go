package models

import (
	"time"
)

type Comment struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	PostID          int64     `gorm:"not null;index" json:"post_id"`
	ParentCommentID *int64    `gorm:"index" json:"parent_comment_id"` // nil for top-level comments
	Content         string    `gorm:"type:text;not null" json:"content"`
	UserID          string    `gorm:"not null;index" json:"user_id"`
	Author          string    `gorm:"not null" json:"author"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

// Validate 检查网关返回的评论是否带齐必填字段
func (c *Comment) Validate() error {
	switch {
	case c.ID == 0:
		return &SchemaError{Collection: "comments", Field: "id"}
	case c.PostID == 0:
		return &SchemaError{Collection: "comments", Field: "post_id"}
	case c.UserID == "":
		return &SchemaError{Collection: "comments", Field: "user_id"}
	case c.CreatedAt.IsZero():
		return &SchemaError{Collection: "comments", Field: "created_at"}
	}
	return nil
}

// CommentNode 评论树节点，每次刷新重新构建，构建后不再修改
type CommentNode struct {
	Comment
	Children []*CommentNode `json:"children"`
}

// CommentInsert 写入网关的评论载荷，id 与 created_at 由网关生成
type CommentInsert struct {
	PostID          int64  `json:"post_id"`
	ParentCommentID *int64 `json:"parent_comment_id"`
	Content         string `json:"content"`
	UserID          string `json:"user_id"`
	Author          string `json:"author"`
}
