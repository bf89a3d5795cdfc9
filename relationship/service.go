package relationship

import (
	"context"
	"time"

	"github.com/puoklam/social-graph-backend/db/model"
	"go.uber.org/zap"
)

type Service struct {
	store     Store
	cache     Cache
	publisher Publisher
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func valid(actor, target *model.User) bool {
	return actor != nil && target != nil && actor.ID != target.ID
}

// Follow makes actor follow target.
func (s *Service) Follow(ctx context.Context, actor, target *model.User) (Result, error) {
	return s.mutate(ctx, model.EventFollow, actor, target)
}

// Unfollow removes the edge actor -> target.
func (s *Service) Unfollow(ctx context.Context, actor, target *model.User) (Result, error) {
	return s.mutate(ctx, model.EventUnfollow, actor, target)
}

func (s *Service) mutate(ctx context.Context, op string, actor, target *model.User) (Result, error) {
	if !valid(actor, target) {
		s.observe(op, Rejected)
		return Rejected, nil
	}

	res := Unchanged
	var following model.IDSet
	err := s.store.Transaction(ctx, func(tx Tx) error {
		set, err := tx.Following(actor.ID)
		if err != nil {
			return err
		}
		following = set
		switch op {
		case model.EventFollow:
			if set.Has(target.ID) {
				return nil
			}
			if err := tx.AddFollow(actor.ID, target.ID); err != nil {
				return err
			}
			set.Add(target.ID)
		case model.EventUnfollow:
			if !set.Has(target.ID) {
				return nil
			}
			if err := tx.RemoveFollow(actor.ID, target.ID); err != nil {
				return err
			}
			set.Remove(target.ID)
		}
		res = Applied
		return nil
	})
	if err != nil {
		s.logger.Error("follow edge update failed",
			zap.String("op", op),
			zap.Uint("actor_id", actor.ID),
			zap.Uint("target_id", target.ID),
			zap.Error(err),
		)
		return Unchanged, persistenceErr(op, err)
	}
	actor.Following = following
	s.observe(op, res)
	if res == Applied {
		s.afterCommit(ctx, op, actor.ID, target.ID)
	}
	return res, nil
}

// afterCommit runs side effects of a committed edge change. The edge is
// already durable so failures here are logged only.
func (s *Service) afterCommit(ctx context.Context, op string, actorID, targetID uint) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, actorID); err != nil {
			s.logger.Warn("following cache invalidate failed", zap.Uint("user_id", actorID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		ev := &model.FollowEvent{
			Type:      op,
			ActorID:   actorID,
			TargetID:  targetID,
			Timestamp: s.now().Unix(),
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish follow event failed", zap.String("op", op), zap.Error(err))
		}
	}
}

func (s *Service) observe(op string, r Result) {
	if s.recorder != nil {
		s.recorder.Observe(op, r.String())
	}
}

// Following returns the ids userID follows, reading through the cache.
func (s *Service) Following(ctx context.Context, userID uint) (model.IDSet, error) {
	var version uint64
	writeBack := false
	if s.cache != nil {
		ids, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("following cache read failed", zap.Uint("user_id", userID), zap.Error(err))
		} else if ok {
			return ids, nil
		}
		// the version must be taken before the store read
		if v, err := s.cache.Version(ctx, userID); err != nil {
			s.logger.Warn("following cache version failed", zap.Uint("user_id", userID), zap.Error(err))
		} else {
			version, writeBack = v, true
		}
	}
	ids, err := s.store.Following(ctx, userID)
	if err != nil {
		return nil, persistenceErr("following", err)
	}
	if writeBack {
		stored, err := s.cache.SetIfVersion(ctx, userID, ids, version)
		switch {
		case err != nil:
			s.logger.Warn("following cache write failed", zap.Uint("user_id", userID), zap.Error(err))
		case !stored:
			s.logger.Debug("following cache write skipped, invalidated meanwhile", zap.Uint("user_id", userID))
		}
	}
	return ids, nil
}

// Followers returns the ids following userID in ascending order.
func (s *Service) Followers(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := s.store.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, persistenceErr("followers", err)
	}
	return ids, nil
}

func (s *Service) FollowerCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.store.FollowerCount(ctx, userID)
	if err != nil {
		return 0, persistenceErr("follower count", err)
	}
	return n, nil
}

// SearchUsers lists every user when query is empty, otherwise the users
// whose username contains query, ignoring case. Whitespace is searched for
// like any other text.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	users, err := s.store.SearchUsers(ctx, query)
	if err != nil {
		return nil, persistenceErr("search users", err)
	}
	return users, nil
}

// Forget drops cached following sets, e.g. after a user is deleted.
func (s *Service) Forget(ctx context.Context, userIDs ...uint) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.Warn("following cache invalidate failed", zap.Uints("user_ids", userIDs), zap.Error(err))
	}
}
