package models

import (
	"time"
)

type Post struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ImageURL    string    `json:"image_url"`
	AvatarURL   *string   `json:"avatar_url"`
	CommunityID *int64    `gorm:"index" json:"community_id"`
	CreatedAt   time.Time `json:"created_at"`

	// 非数据库字段，读取时统计
	LikeCount    int `gorm:"-" json:"like_count"`
	CommentCount int `gorm:"-" json:"comment_count"`
}

func (Post) TableName() string { return "posts" }

func (p *Post) Validate() error {
	switch {
	case p.ID == 0:
		return &SchemaError{Collection: "posts", Field: "id"}
	case p.Title == "":
		return &SchemaError{Collection: "posts", Field: "title"}
	case p.CreatedAt.IsZero():
		return &SchemaError{Collection: "posts", Field: "created_at"}
	}
	return nil
}

// PostInsert 写入网关的帖子载荷
type PostInsert struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	ImageURL    string  `json:"image_url"`
	AvatarURL   *string `json:"avatar_url"`
	CommunityID *int64  `json:"community_id"`
}
