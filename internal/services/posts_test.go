package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"plaza/internal/gateway"
	"plaza/internal/gateway/memstore"
	"plaza/internal/models"
)

func newPostFixture(t *testing.T) (*memstore.Store, *PostService) {
	t.Helper()
	store := memstore.New(memstore.WithClock(tickingClock()))
	svc := NewPostService(store, store, NewAggregateCounter(store, StrategyFanout, 4, nil), nil)
	svc.now = func() time.Time { return time.UnixMilli(1714564800000) }
	return store, svc
}

func TestCreatePostReportsEveryMissingField(t *testing.T) {
	store, svc := newPostFixture(t)

	_, err := svc.CreatePost(context.Background(), nil, NewPost{Title: "  "}, nil)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if got := strings.Join(validation.Fields, ","); got != "title,content,image" {
		t.Errorf("Expected title,content,image, got %s", got)
	}
	if err.Error() != "title, content, image are required" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if store.Calls("upload") != 0 || store.Calls("insert") != 0 {
		t.Errorf("Expected no gateway call before validation passes")
	}
}

func TestCreatePostUploadsImage(t *testing.T) {
	store, svc := newPostFixture(t)
	identity := &models.Identity{ID: "u1", AvatarURL: "https://avatars.example.com/u1.png"}
	community := int64(2)

	post, err := svc.CreatePost(context.Background(), identity,
		NewPost{Title: "Sunset", Content: "from the pier", CommunityID: &community},
		&ImageUpload{Filename: "sky.png", ContentType: "image/png", Body: strings.NewReader("png-bytes")})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	path := "Sunset-1714564800000-sky.png"
	data, ok := store.Object(gateway.PostImagesBucket, path)
	if !ok || string(data) != "png-bytes" {
		t.Fatalf("Expected image uploaded at %s", path)
	}
	if want := "http://memory.local/storage/v1/object/public/post-images/" + path; post.ImageURL != want {
		t.Errorf("Expected image URL %s, got %s", want, post.ImageURL)
	}
	if post.AvatarURL == nil || *post.AvatarURL != identity.AvatarURL {
		t.Errorf("Expected author avatar to be stored, got %v", post.AvatarURL)
	}
	if post.CommunityID == nil || *post.CommunityID != 2 {
		t.Errorf("Expected community 2, got %v", post.CommunityID)
	}
}

func TestCreatePostUploadFailureSkipsInsert(t *testing.T) {
	store, svc := newPostFixture(t)
	store.Fail(gateway.PostImagesBucket, "upload", &gateway.GatewayError{Status: 413, Message: "Payload too large"})

	_, err := svc.CreatePost(context.Background(), nil, NewPost{Title: "Big", Content: "x"},
		&ImageUpload{Filename: "big.png", Body: strings.NewReader("...")})
	var mutation *MutationError
	if !errors.As(err, &mutation) || err.Error() != "Payload too large" {
		t.Fatalf("Expected upload MutationError, got %v", err)
	}
	if n := store.Calls("insert"); n != 0 {
		t.Errorf("Expected no post insert after failed upload, got %d", n)
	}
}

func TestListPostsNewestFirstWithCounts(t *testing.T) {
	store, svc := newPostFixture(t)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"first", "second", "third"} {
		post, err := svc.CreatePost(ctx, nil, NewPost{Title: title, Content: "body"},
			&ImageUpload{Filename: title + ".png", Body: strings.NewReader(title)})
		if err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
		ids = append(ids, post.ID)
	}
	store.Seed(gateway.Comments, map[string]any{"id": 1, "post_id": ids[0], "user_id": "u"})
	store.Seed(gateway.Votes, map[string]any{"id": 1, "post_id": ids[2], "user_id": "u", "vote": 1})

	posts, err := svc.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 3 || posts[0].Title != "third" || posts[2].Title != "first" {
		t.Fatalf("Expected newest first, got %+v", posts)
	}
	if posts[0].LikeCount != 1 || posts[2].CommentCount != 1 {
		t.Errorf("Expected counts to be filled, got %+v", posts)
	}
}

func TestListCommunityPosts(t *testing.T) {
	store, svc := newPostFixture(t)
	store.Seed(gateway.Posts, map[string]any{"id": 1, "title": "a", "community_id": 1, "created_at": "2024-05-01T10:00:00Z"})
	store.Seed(gateway.Posts, map[string]any{"id": 2, "title": "b", "community_id": 2, "created_at": "2024-05-01T11:00:00Z"})
	store.Seed(gateway.Posts, map[string]any{"id": 3, "title": "c", "created_at": "2024-05-01T12:00:00Z"})

	posts, err := svc.ListCommunityPosts(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListCommunityPosts failed: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 2 {
		t.Errorf("Expected only post 2, got %+v", posts)
	}
}

func TestGetPost(t *testing.T) {
	store, svc := newPostFixture(t)
	store.Seed(gateway.Posts, map[string]any{"id": 4, "title": "hello", "created_at": "2024-05-01T10:00:00Z"})
	ctx := context.Background()

	post, err := svc.GetPost(ctx, 4)
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if post.Title != "hello" {
		t.Errorf("Expected title hello, got %s", post.Title)
	}

	_, err = svc.GetPost(ctx, 99)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}
