package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"plaza/internal/metrics"
	"plaza/internal/models"
)

// DefaultRefreshInterval 评论轮询间隔
const DefaultRefreshInterval = 5 * time.Second

// ThreadSnapshot 一次刷新的结果。Err 非空时 Roots 为空，调用方应保留上一次的数据
type ThreadSnapshot struct {
	PostID    int64
	Roots     []*models.CommentNode
	Total     int
	Trigger   string
	FetchedAt time.Time
	Err       error
}

// Refresher 定时轮询评论，并在评论写入成功后立即刷新
type Refresher struct {
	comments *CommentService
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewRefresher(comments *CommentService, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{comments: comments, interval: interval, log: logger.Sugar().Named("refresher")}
}

// Watch 跟踪一个帖子的评论树。
type Watch struct {
	trigger chan struct{}
	done    chan struct{}
}

// Trigger 请求立即刷新，多次请求在下一次刷新前合并
func (w *Watch) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Done 在 ctx 取消且在途的刷新结束后关闭
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Watch 立即拉取一次，之后每个周期以及每次评论写入后重新拉取。
// 定时刷新和写入触发的刷新可能并发，以最后返回的结果为准；deliver 不会被并发调用。
func (r *Refresher) Watch(ctx context.Context, postID int64, deliver func(ThreadSnapshot)) *Watch {
	w := &Watch{trigger: make(chan struct{}, 1), done: make(chan struct{})}
	unsubscribe := r.comments.OnMutation(func(id int64) {
		if id == postID {
			w.Trigger()
		}
	})

	go func() {
		defer close(w.done)
		defer unsubscribe()

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		defer wg.Wait()

		refetch := func(trigger string) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				snap := r.fetch(ctx, postID, trigger)
				if ctx.Err() != nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				deliver(snap)
			}()
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		refetch("initial")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refetch("tick")
			case <-w.trigger:
				refetch("mutation")
			}
		}
	}()
	return w
}

func (r *Refresher) fetch(ctx context.Context, postID int64, trigger string) ThreadSnapshot {
	snap := ThreadSnapshot{PostID: postID, Trigger: trigger, FetchedAt: time.Now()}
	comments, err := r.comments.Refresh(ctx, postID)
	metrics.ObserveRefresh(trigger, err)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warnf("refresh comments for post %d (%s): %v", postID, trigger, err)
		}
		snap.Err = err
		return snap
	}
	snap.Roots = BuildCommentTree(comments)
	snap.Total = len(comments)
	return snap
}
