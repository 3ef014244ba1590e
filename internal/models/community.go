package models

import (
	"time"
)

type Community struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;unique" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Community) TableName() string { return "communities" }

func (c *Community) Validate() error {
	switch {
	case c.ID == 0:
		return &SchemaError{Collection: "communities", Field: "id"}
	case c.Name == "":
		return &SchemaError{Collection: "communities", Field: "name"}
	case c.CreatedAt.IsZero():
		return &SchemaError{Collection: "communities", Field: "created_at"}
	}
	return nil
}

type CommunityInsert struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
