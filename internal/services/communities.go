package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"plaza/internal/cache"
	"plaza/internal/gateway"
	"plaza/internal/models"
)

type CommunityService struct {
	records gateway.Records
	cache   *queryCache
	log     *zap.SugaredLogger
}

func NewCommunityService(records gateway.Records, store cache.Store, logger *zap.Logger) *CommunityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Sugar().Named("communities")
	return &CommunityService{records: records, cache: newQueryCache(store, log), log: log}
}

var communitiesKey = cache.Key{Entity: gateway.Communities}

// ListCommunities 最新创建的在前
func (s *CommunityService) ListCommunities(ctx context.Context) ([]models.Community, error) {
	if cached, ok := loadCached[[]models.Community](ctx, s.cache, communitiesKey); ok {
		return cached, nil
	}
	gen := s.cache.generation(communitiesKey)
	rows, err := s.records.Select(ctx, gateway.Communities, gateway.Query{
		Order: []gateway.Order{gateway.Desc("created_at"), gateway.Desc("id")},
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Communities, Err: err}
	}
	communities, err := models.DecodeAll[models.Community](rows)
	if err != nil {
		return nil, &FetchError{Resource: gateway.Communities, Err: err}
	}
	saveCached(ctx, s.cache, communitiesKey, gen, communities)
	return communities, nil
}

func (s *CommunityService) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	rows, err := s.records.Select(ctx, gateway.Communities, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Communities, Err: err}
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "community", ID: id}
	}
	community, err := models.Decode[models.Community](rows[0])
	if err != nil {
		return nil, &FetchError{Resource: gateway.Communities, Err: err}
	}
	return &community, nil
}

func (s *CommunityService) CreateCommunity(ctx context.Context, name, description string) (*models.Community, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: []string{"name"}}
	}
	raw, err := s.records.Insert(ctx, gateway.Communities, models.CommunityInsert{
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, &MutationError{Op: "create community", Err: err}
	}
	s.cache.invalidate(ctx, communitiesKey)

	community, err := models.Decode[models.Community](raw)
	if err != nil {
		return nil, &MutationError{Op: "create community", Err: err}
	}
	return &community, nil
}
