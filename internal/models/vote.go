package models

type Vote struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	PostID int64  `gorm:"not null;uniqueIndex:idx_vote_post_user" json:"post_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_vote_post_user" json:"user_id"`
	Value  int    `gorm:"column:vote;not null" json:"vote"` // 1 or -1
}

func (Vote) TableName() string { return "votes" }

func (v *Vote) Validate() error {
	switch {
	case v.ID == 0:
		return &SchemaError{Collection: "votes", Field: "id"}
	case v.PostID == 0:
		return &SchemaError{Collection: "votes", Field: "post_id"}
	case v.UserID == "":
		return &SchemaError{Collection: "votes", Field: "user_id"}
	case v.Value != 1 && v.Value != -1:
		return &SchemaError{Collection: "votes", Field: "vote"}
	}
	return nil
}

// VoteInsert 写入网关的投票载荷
type VoteInsert struct {
	PostID int64  `json:"post_id"`
	UserID string `json:"user_id"`
	Value  int    `json:"vote"`
}

// VoteTally 单个帖子的投票汇总
type VoteTally struct {
	PostID   int64 `json:"post_id"`
	Likes    int   `json:"likes"`
	Dislikes int   `json:"dislikes"`
	UserVote int   `json:"user_vote"` // 0 when the viewer has not voted
}
