package services

import (
	"context"

	"go.uber.org/zap"

	"plaza/internal/cache"
	"plaza/internal/gateway"
	"plaza/internal/models"
)

type VoteService struct {
	records gateway.Records
	cache   *queryCache
	log     *zap.SugaredLogger
}

func NewVoteService(records gateway.Records, store cache.Store, logger *zap.Logger) *VoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Sugar().Named("votes")
	return &VoteService{records: records, cache: newQueryCache(store, log), log: log}
}

func votesKey(postID int64) cache.Key {
	return cache.Key{Entity: gateway.Votes, ID: postID}
}

// Vote 点赞(1)或点踩(-1)。
// 没有投过票则新增；与已有票相同则撤销；不同则改票。返回操作后的票值，撤销后为 0。
func (s *VoteService) Vote(ctx context.Context, identity *models.Identity, postID int64, value int) (int, error) {
	if identity == nil || identity.ID == "" {
		return 0, &AuthRequiredError{Action: "vote"}
	}
	if value != 1 && value != -1 {
		return 0, &ValidationError{Fields: []string{"vote"}}
	}

	filters := []gateway.Filter{gateway.Eq("post_id", postID), gateway.Eq("user_id", identity.ID)}
	rows, err := s.records.Select(ctx, gateway.Votes, gateway.Query{Filters: filters, Limit: 1})
	if err != nil {
		return 0, &MutationError{Op: "vote", Err: err}
	}

	result := value
	switch {
	case len(rows) == 0:
		_, err = s.records.Insert(ctx, gateway.Votes, models.VoteInsert{PostID: postID, UserID: identity.ID, Value: value})
	default:
		existing, decodeErr := models.Decode[models.Vote](rows[0])
		if decodeErr != nil {
			return 0, &MutationError{Op: "vote", Err: decodeErr}
		}
		if existing.Value == value {
			result = 0
			err = s.records.Delete(ctx, gateway.Votes, filters)
		} else {
			err = s.records.Update(ctx, gateway.Votes, filters, map[string]any{"vote": value})
		}
	}
	if err != nil {
		return 0, &MutationError{Op: "vote", Err: err}
	}

	s.cache.invalidate(ctx, votesKey(postID))
	return result, nil
}

func (s *VoteService) votes(ctx context.Context, postID int64) ([]models.Vote, error) {
	key := votesKey(postID)
	if cached, ok := loadCached[[]models.Vote](ctx, s.cache, key); ok {
		return cached, nil
	}
	gen := s.cache.generation(key)
	rows, err := s.records.Select(ctx, gateway.Votes, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("post_id", postID)},
	})
	if err != nil {
		return nil, &FetchError{Resource: gateway.Votes, Err: err}
	}
	votes, err := models.DecodeAll[models.Vote](rows)
	if err != nil {
		return nil, &FetchError{Resource: gateway.Votes, Err: err}
	}
	saveCached(ctx, s.cache, key, gen, votes)
	return votes, nil
}

// Tally 汇总帖子的赞、踩以及 identity 自己的票（identity 可为 nil）
func (s *VoteService) Tally(ctx context.Context, postID int64, identity *models.Identity) (*models.VoteTally, error) {
	votes, err := s.votes(ctx, postID)
	if err != nil {
		return nil, err
	}
	tally := &models.VoteTally{PostID: postID}
	for _, v := range votes {
		switch v.Value {
		case 1:
			tally.Likes++
		case -1:
			tally.Dislikes++
		}
		if identity != nil && v.UserID == identity.ID {
			tally.UserVote = v.Value
		}
	}
	return tally, nil
}
