package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

type PostService struct {
	records gateway.Records
	blobs   gateway.Blobs
	counter *AggregateCounter
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewPostService(records gateway.Records, blobs gateway.Blobs, counter *AggregateCounter, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		records: records,
		blobs:   blobs,
		counter: counter,
		log:     logger.Sugar().Named("posts"),
		now:     time.Now,
	}
}

// ListPosts 全部帖子，最新在前，附带点赞数和评论数
func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.list(ctx, nil)
}

// ListCommunityPosts 某个社区的帖子
func (s *PostService) ListCommunityPosts(ctx context.Context, communityID int64) ([]models.Post, error) {
	return s.list(ctx, []gateway.Filter{gateway.Eq("community_id", communityID)})
}

func (s *PostService) list(ctx context.Context, filters []gateway.Filter) ([]models.Post, error) {
	rows, err := s.records.Select(ctx, gateway.Posts, gateway.Query{
		Filters: filters,
		Order:   []gateway.Order{gateway.Desc("created_at"), gateway.Desc("id")},
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Posts, Err: err}
	}
	posts, err := models.DecodeAll[models.Post](rows)
	if err != nil {
		return nil, &FetchError{Resource: gateway.Posts, Err: err}
	}
	if err := s.counter.Fill(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	rows, err := s.records.Select(ctx, gateway.Posts, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Posts, Err: err}
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "post", ID: id}
	}
	post, err := models.Decode[models.Post](rows[0])
	if err != nil {
		return nil, &FetchError{Resource: gateway.Posts, Err: err}
	}
	posts := []models.Post{post}
	if err := s.counter.Fill(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

type NewPost struct {
	Title       string
	Content     string
	CommunityID *int64
}

// ImageUpload 帖子配图
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreatePost 先上传图片，再写入帖子。标题、内容和图片均为必填
func (s *PostService) CreatePost(ctx context.Context, identity *models.Identity, in NewPost, image *ImageUpload) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if content == "" {
		missing = append(missing, "content")
	}
	if image == nil || image.Body == nil || image.Filename == "" {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	path := fmt.Sprintf("%s-%d-%s", title, s.now().UnixMilli(), image.Filename)
	if err := s.blobs.Upload(ctx, gateway.PostImagesBucket, path, image.Body, image.ContentType); err != nil {
		return nil, &MutationError{Op: "upload", Err: err}
	}

	var avatar *string
	if identity != nil && identity.AvatarURL != "" {
		avatar = &identity.AvatarURL
	}
	raw, err := s.records.Insert(ctx, gateway.Posts, models.PostInsert{
		Title:       title,
		Content:     content,
		ImageURL:    s.blobs.PublicURL(gateway.PostImagesBucket, path),
		AvatarURL:   avatar,
		CommunityID: in.CommunityID,
	})
	if err != nil {
		return nil, &MutationError{Op: "create post", Err: err}
	}
	post, err := models.Decode[models.Post](raw)
	if err != nil {
		return nil, &MutationError{Op: "create post", Err: err}
	}
	s.log.Infof("post %d created: %s", post.ID, post.Title)
	return &post, nil
}
