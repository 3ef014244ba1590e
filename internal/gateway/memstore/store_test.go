package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

func TestSelectFiltersAndOrders(t *testing.T) {
	s := New()
	s.Seed(gateway.Comments, map[string]any{"id": 1, "post_id": 1, "created_at": "2024-05-01T12:00:00.5+02:00"})
	s.Seed(gateway.Comments, map[string]any{"id": 2, "post_id": 1, "created_at": "2024-05-01T10:00:01Z"})
	s.Seed(gateway.Comments, map[string]any{"id": 3, "post_id": 2, "created_at": "2024-05-01T09:00:00Z"})
	s.Seed(gateway.Comments, map[string]any{"id": 4, "post_id": 1, "parent_comment_id": 2, "created_at": "2024-05-01T10:00:01Z"})

	rows, err := s.Select(context.Background(), gateway.Comments, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("post_id", int64(1))},
		Order:   []gateway.Order{gateway.Asc("created_at"), gateway.Desc("id")},
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	var got []string
	for _, r := range rows {
		var v struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(r, &v); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		got = append(got, v.ID.String())
	}
	// 12:00:00.5+02:00 即 10:00:00.5Z，早于 10:00:01Z
	if strings.Join(got, ",") != "1,4,2" {
		t.Errorf("Expected 1,4,2, got %v", got)
	}

	rows, _ = s.Select(context.Background(), gateway.Comments, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("parent_comment_id", nil), gateway.In("id", []int64{2, 3, 4})},
	})
	if len(rows) != 2 {
		t.Errorf("Expected 2 top-level rows among 2,3,4, got %d", len(rows))
	}
}

func TestInsertAssignsIDAndEnforcesUnique(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	raw, err := s.Insert(ctx, gateway.Comments, models.CommentInsert{PostID: 1, Content: "hi", UserID: "u", Author: "a"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	c, err := models.Decode[models.Comment](raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.ID != 1 || !c.CreatedAt.Equal(now) {
		t.Errorf("Expected id 1 at %v, got %+v", now, c)
	}

	if _, err := s.Insert(ctx, gateway.Votes, models.VoteInsert{PostID: 1, UserID: "u", Value: 1}); err != nil {
		t.Fatalf("Insert vote failed: %v", err)
	}
	_, err = s.Insert(ctx, gateway.Votes, models.VoteInsert{PostID: 1, UserID: "u", Value: -1})
	var ge *gateway.GatewayError
	if !errors.As(err, &ge) || ge.Status != 409 || ge.Code != "23505" {
		t.Errorf("Expected unique violation, got %v", err)
	}
}

func TestUpdateDeleteCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, user := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx, gateway.Votes, models.VoteInsert{PostID: 1, UserID: user, Value: 1}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	s.Update(ctx, gateway.Votes, []gateway.Filter{gateway.Eq("user_id", "b")}, map[string]any{"vote": -1})
	s.Delete(ctx, gateway.Votes, []gateway.Filter{gateway.Eq("user_id", "c")})

	likes, _ := s.Count(ctx, gateway.Votes, []gateway.Filter{gateway.Eq("post_id", 1), gateway.Eq("vote", 1)})
	total, _ := s.Count(ctx, gateway.Votes, []gateway.Filter{gateway.Eq("post_id", 1)})
	if likes != 1 || total != 2 {
		t.Errorf("Expected 1 like of 2 votes, got %d of %d", likes, total)
	}

	counts, _ := s.CountBy(ctx, gateway.Votes, "post_id", nil)
	if counts[1] != 2 {
		t.Errorf("Expected 2 votes grouped under post 1, got %v", counts)
	}
}

func TestFailAndCalls(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.Fail(gateway.Posts, "select", boom)
	if _, err := s.Select(ctx, gateway.Posts, gateway.Query{}); !errors.Is(err, boom) {
		t.Errorf("Expected injected failure, got %v", err)
	}
	if _, err := s.Select(ctx, gateway.Comments, gateway.Query{}); err != nil {
		t.Errorf("Expected other collections unaffected, got %v", err)
	}
	s.Fail(gateway.Posts, "select", nil)
	if _, err := s.Select(ctx, gateway.Posts, gateway.Query{}); err != nil {
		t.Errorf("Expected failure cleared, got %v", err)
	}
	if n := s.Calls("select"); n != 3 {
		t.Errorf("Expected 3 selects, got %d", n)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Select(cancelled, gateway.Posts, gateway.Query{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestUploadRejectsExisting(t *testing.T) {
	s := New(WithBaseURL("http://gw.local/"))
	ctx := context.Background()

	if err := s.Upload(ctx, "b", "x.png", strings.NewReader("1"), ""); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := s.Upload(ctx, "b", "x.png", strings.NewReader("2"), ""); err == nil {
		t.Errorf("Expected conflict on second upload")
	}
	if data, _ := s.Object("b", "x.png"); string(data) != "1" {
		t.Errorf("Expected first upload kept, got %q", data)
	}
	if got := s.PublicURL("b", "x.png"); got != "http://gw.local/storage/v1/object/public/b/x.png" {
		t.Errorf("Unexpected public URL %s", got)
	}
}

func TestDevUserSignIn(t *testing.T) {
	s := New(WithDevUser("http://localhost:8080/auth/callback", models.Identity{ID: "dev", DisplayName: "dev"}))
	ctx := context.Background()

	req, err := s.SignIn(ctx, "google")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if req.URL != "http://localhost:8080/auth/callback?code=dev-dev" {
		t.Errorf("Unexpected redirect %s", req.URL)
	}
	token, err := s.Exchange(ctx, "dev-dev", req.Verifier)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	identity, err := s.Lookup(ctx, token.AccessToken)
	if err != nil || identity.DisplayName != "dev" {
		t.Errorf("Expected dev identity, got %+v (%v)", identity, err)
	}
	if _, err := s.Exchange(ctx, "nope", ""); err == nil {
		t.Errorf("Expected error for unknown code")
	}
}
