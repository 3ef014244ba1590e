package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"plaza/internal/gateway"
	"plaza/internal/gateway/memstore"
	"plaza/internal/models"
)

// recordsOnly 隐藏 memstore 的分组统计能力
type recordsOnly struct {
	gateway.Records
}

func seedCounts(t *testing.T) (*memstore.Store, []models.Post) {
	t.Helper()
	store := memstore.New()
	seed := func(collection string, record map[string]any) {
		if err := store.Seed(collection, record); err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
	}

	// 帖子 1：两个赞一个踩、三条评论；帖子 2：没有互动；帖子 3：一个赞
	seed(gateway.Votes, map[string]any{"id": 1, "post_id": 1, "user_id": "a", "vote": 1})
	seed(gateway.Votes, map[string]any{"id": 2, "post_id": 1, "user_id": "b", "vote": 1})
	seed(gateway.Votes, map[string]any{"id": 3, "post_id": 1, "user_id": "c", "vote": -1})
	seed(gateway.Votes, map[string]any{"id": 4, "post_id": 3, "user_id": "a", "vote": 1})
	for i := 1; i <= 3; i++ {
		seed(gateway.Comments, map[string]any{"id": i, "post_id": 1, "user_id": "a", "content": "x"})
	}

	posts := []models.Post{{ID: 1}, {ID: 2}, {ID: 3}}
	return store, posts
}

func assertCounts(t *testing.T, posts []models.Post) {
	t.Helper()
	want := map[int64][2]int{1: {2, 3}, 2: {0, 0}, 3: {1, 0}}
	for _, p := range posts {
		got := [2]int{p.LikeCount, p.CommentCount}
		if got != want[p.ID] {
			t.Errorf("Expected post %d likes/comments %v, got %v", p.ID, want[p.ID], got)
		}
	}
}

func TestAggregateCounterFanout(t *testing.T) {
	store, posts := seedCounts(t)
	counter := NewAggregateCounter(store, StrategyFanout, 2, nil)

	if err := counter.Fill(context.Background(), posts); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	assertCounts(t, posts)
	if n := store.Calls("count"); n != 2*len(posts) {
		t.Errorf("Expected %d count requests, got %d", 2*len(posts), n)
	}
}

func TestAggregateCounterGroupedMatchesFanout(t *testing.T) {
	store, posts := seedCounts(t)
	counter := NewAggregateCounter(store, StrategyGrouped, 0, nil)

	if err := counter.Fill(context.Background(), posts); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	assertCounts(t, posts)
	if n := store.Calls("count"); n != 0 {
		t.Errorf("Expected no per-post count requests, got %d", n)
	}
	if n := store.Calls("count_by"); n != 2 {
		t.Errorf("Expected 2 grouped requests, got %d", n)
	}
}

func TestAggregateCounterGroupedFallsBack(t *testing.T) {
	store, posts := seedCounts(t)
	counter := NewAggregateCounter(recordsOnly{store}, StrategyGrouped, 0, nil)

	if err := counter.Fill(context.Background(), posts); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	assertCounts(t, posts)
	if n := store.Calls("count_by"); n != 0 {
		t.Errorf("Expected fanout fallback, got %d grouped requests", n)
	}
}

func TestAggregateCounterFailsWholeListing(t *testing.T) {
	for _, strategy := range []AggregateStrategy{StrategyFanout, StrategyGrouped} {
		t.Run(string(strategy), func(t *testing.T) {
			store, posts := seedCounts(t)
			failure := &gateway.GatewayError{Status: 500, Message: "permission denied for table comments"}
			store.Fail(gateway.Comments, "count", failure)
			store.Fail(gateway.Comments, "count_by", failure)

			err := NewAggregateCounter(store, strategy, 4, nil).Fill(context.Background(), posts)
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Expected FetchError, got %v", err)
			}
			if err.Error() != failure.Message {
				t.Errorf("Expected %q, got %q", failure.Message, err.Error())
			}
		})
	}
}

func TestAggregateCounterManyPosts(t *testing.T) {
	store := memstore.New()
	posts := make([]models.Post, 50)
	for i := range posts {
		posts[i].ID = int64(i + 1)
		for j := 0; j <= i%3; j++ {
			store.Seed(gateway.Comments, map[string]any{"post_id": i + 1, "user_id": fmt.Sprint(j)})
		}
	}

	if err := NewAggregateCounter(store, StrategyFanout, 8, nil).Fill(context.Background(), posts); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	for i, p := range posts {
		if p.CommentCount != i%3+1 {
			t.Errorf("Expected post %d to have %d comments, got %d", p.ID, i%3+1, p.CommentCount)
		}
	}
}

func TestAggregateCounterEmpty(t *testing.T) {
	store := memstore.New()
	if err := NewAggregateCounter(store, StrategyFanout, 0, nil).Fill(context.Background(), nil); err != nil {
		t.Errorf("Expected no error for empty listing, got %v", err)
	}
	if n := store.Calls("count"); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
}
