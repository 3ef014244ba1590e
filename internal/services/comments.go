package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"plaza/internal/cache"
	"plaza/internal/gateway"
	"plaza/internal/models"
)

// CommentService 评论的读取与提交
type CommentService struct {
	records gateway.Records
	cache   *queryCache
	log     *zap.SugaredLogger

	mu        sync.Mutex
	listeners map[int]func(postID int64)
	nextID    int
}

func NewCommentService(records gateway.Records, store cache.Store, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Sugar().Named("comments")
	return &CommentService{
		records:   records,
		cache:     newQueryCache(store, log),
		log:       log,
		listeners: make(map[int]func(postID int64)),
	}
}

func commentsKey(postID int64) cache.Key {
	return cache.Key{Entity: gateway.Comments, ID: postID}
}

// FetchComments 直接从网关读取帖子的全部评论，按 created_at 升序
func (s *CommentService) FetchComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	rows, err := s.records.Select(ctx, gateway.Comments, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("post_id", postID)},
		Order:   []gateway.Order{gateway.Asc("created_at"), gateway.Asc("id")},
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Comments, Err: err}
	}
	comments, err := models.DecodeAll[models.Comment](rows)
	if err != nil {
		return nil, &FetchError{Resource: gateway.Comments, Err: err}
	}
	return comments, nil
}

// Refresh 回源读取并写入缓存；读取期间有新评论写入时不写回
func (s *CommentService) Refresh(ctx context.Context, postID int64) ([]models.Comment, error) {
	key := commentsKey(postID)
	gen := s.cache.generation(key)
	comments, err := s.FetchComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	saveCached(ctx, s.cache, key, gen, comments)
	return comments, nil
}

// Comments 优先使用未失效的缓存
func (s *CommentService) Comments(ctx context.Context, postID int64) ([]models.Comment, error) {
	if cached, ok := loadCached[[]models.Comment](ctx, s.cache, commentsKey(postID)); ok {
		return cached, nil
	}
	return s.Refresh(ctx, postID)
}

// Thread 读取评论并构建评论树
func (s *CommentService) Thread(ctx context.Context, postID int64) ([]*models.CommentNode, error) {
	comments, err := s.Comments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(comments), nil
}

// NewComment 新评论，ParentID 非空时为回复
type NewComment struct {
	PostID   int64
	ParentID *int64
	Content  string
}

// SubmitComment 校验后写入评论，成功后使缓存失效并通知刷新
func (s *CommentService) SubmitComment(ctx context.Context, identity *models.Identity, in NewComment) (*models.Comment, error) {
	action := "comment"
	if in.ParentID != nil {
		action = "reply"
	}
	if identity == nil || identity.ID == "" {
		return nil, &AuthRequiredError{Action: action}
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, &ValidationError{Fields: []string{"content"}}
	}
	if in.PostID == 0 {
		return nil, &ValidationError{Fields: []string{"post_id"}}
	}

	raw, err := s.records.Insert(ctx, gateway.Comments, models.CommentInsert{
		PostID:          in.PostID,
		ParentCommentID: in.ParentID,
		Content:         content,
		UserID:          identity.ID,
		Author:          identity.AuthorName(),
	})
	if err != nil {
		return nil, &MutationError{Op: action, Err: err}
	}

	s.cache.invalidate(ctx, commentsKey(in.PostID))
	s.notify(in.PostID)

	comment, err := models.Decode[models.Comment](raw)
	if err != nil {
		// 评论已写入，按请求内容返回
		s.log.Warnf("comment on post %d saved but returned record is malformed: %v", in.PostID, err)
		return &models.Comment{
			PostID:          in.PostID,
			ParentCommentID: in.ParentID,
			Content:         content,
			UserID:          identity.ID,
			Author:          identity.AuthorName(),
		}, nil
	}
	return &comment, nil
}

// OnMutation 注册评论写入成功后的回调，返回取消函数
func (s *CommentService) OnMutation(fn func(postID int64)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *CommentService) notify(postID int64) {
	s.mu.Lock()
	fns := make([]func(int64), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(postID)
	}
}
