package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"plaza/internal/cache"
	"plaza/internal/gateway/memstore"
)

func TestCommunities(t *testing.T) {
	store := memstore.New(memstore.WithClock(tickingClock()))
	lru, err := cache.NewLRU(8, time.Minute)
	if err != nil {
		t.Fatalf("NewLRU failed: %v", err)
	}
	svc := NewCommunityService(store, lru, nil)
	ctx := context.Background()

	if _, err := svc.CreateCommunity(ctx, " ", ""); err == nil {
		t.Errorf("Expected validation error for blank name")
	}

	golang, err := svc.CreateCommunity(ctx, "  golang ", " gophers ")
	if err != nil {
		t.Fatalf("CreateCommunity failed: %v", err)
	}
	if golang.Name != "golang" || golang.Description != "gophers" {
		t.Errorf("Expected trimmed community, got %+v", golang)
	}

	list, err := svc.ListCommunities(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected 1 community, got %d (%v)", len(list), err)
	}

	// 新建后列表缓存失效
	if _, err := svc.CreateCommunity(ctx, "rust", ""); err != nil {
		t.Fatalf("CreateCommunity failed: %v", err)
	}
	list, err = svc.ListCommunities(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("Expected 2 communities, got %d (%v)", len(list), err)
	}
	if list[0].Name != "rust" {
		t.Errorf("Expected newest community first, got %s", list[0].Name)
	}

	got, err := svc.GetCommunity(ctx, golang.ID)
	if err != nil || got.Name != "golang" {
		t.Errorf("Expected golang, got %+v (%v)", got, err)
	}
	_, err = svc.GetCommunity(ctx, 404)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}
