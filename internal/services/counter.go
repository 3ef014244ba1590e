package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

// AggregateStrategy 帖子点赞数和评论数的统计方式
type AggregateStrategy string

const (
	// StrategyFanout 每个帖子各发两次 count 请求，并行执行
	StrategyFanout AggregateStrategy = "fanout"
	// StrategyGrouped 每个集合一次分组查询，网关需实现 gateway.Aggregator
	StrategyGrouped AggregateStrategy = "grouped"
)

type AggregateCounter struct {
	records     gateway.Records
	strategy    AggregateStrategy
	concurrency int
	log         *zap.SugaredLogger
}

// NewAggregateCounter concurrency 为 0 时不限制并发
func NewAggregateCounter(records gateway.Records, strategy AggregateStrategy, concurrency int, logger *zap.Logger) *AggregateCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == "" {
		strategy = StrategyFanout
	}
	return &AggregateCounter{
		records:     records,
		strategy:    strategy,
		concurrency: concurrency,
		log:         logger.Sugar().Named("counter"),
	}
}

func likeFilters(postID int64) []gateway.Filter {
	return []gateway.Filter{gateway.Eq("post_id", postID), gateway.Eq("vote", 1)}
}

// Fill 填充 LikeCount 和 CommentCount，任一统计失败则整体失败
func (c *AggregateCounter) Fill(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if c.strategy == StrategyGrouped {
		if agg, ok := c.records.(gateway.Aggregator); ok {
			return c.grouped(ctx, agg, posts)
		}
		c.log.Debug("gateway has no grouped count, falling back to fanout")
	}
	return c.fanout(ctx, posts)
}

func (c *AggregateCounter) fanout(ctx context.Context, posts []models.Post) error {
	likes := make([]int, len(posts))
	comments := make([]int, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i := range posts {
		id := posts[i].ID
		g.Go(func() error {
			n, err := c.records.Count(gctx, gateway.Votes, likeFilters(id))
			likes[i] = n
			return err
		})
		g.Go(func() error {
			n, err := c.records.Count(gctx, gateway.Comments, []gateway.Filter{gateway.Eq("post_id", id)})
			comments[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return &FetchError{Resource: gateway.Posts, Err: err}
	}

	for i := range posts {
		posts[i].LikeCount = likes[i]
		posts[i].CommentCount = comments[i]
	}
	return nil
}

func (c *AggregateCounter) grouped(ctx context.Context, agg gateway.Aggregator, posts []models.Post) error {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var likes, comments map[int64]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		likes, err = agg.CountBy(gctx, gateway.Votes, "post_id", []gateway.Filter{
			gateway.In("post_id", ids),
			gateway.Eq("vote", 1),
		})
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = agg.CountBy(gctx, gateway.Comments, "post_id", []gateway.Filter{
			gateway.In("post_id", ids),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return &FetchError{Resource: gateway.Posts, Err: err}
	}

	for i := range posts {
		posts[i].LikeCount = likes[posts[i].ID]
		posts[i].CommentCount = comments[posts[i].ID]
	}
	return nil
}
