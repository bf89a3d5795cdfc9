package relationship

import (
	"context"

	"github.com/puoklam/social-graph-backend/db/model"
)

// Store is the persistence the service depends on. Commits must be
// visible to every read that starts after Transaction returns.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	Following(ctx context.Context, userID uint) (model.IDSet, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowerCount(ctx context.Context, userID uint) (int64, error)
	SearchUsers(ctx context.Context, query string) ([]model.User, error)
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	Following(userID uint) (model.IDSet, error)
	AddFollow(followerID, followeeID uint) error
	RemoveFollow(followerID, followeeID uint) error
}

// Cache holds following sets. Every Invalidate bumps the user's version so
// a write-back of a set read before the invalidation is refused.
type Cache interface {
	Get(ctx context.Context, userID uint) (model.IDSet, bool, error)
	Version(ctx context.Context, userID uint) (uint64, error)
	// SetIfVersion stores ids only while userID is still at version.
	SetIfVersion(ctx context.Context, userID uint, ids model.IDSet, version uint64) (bool, error)
	Invalidate(ctx context.Context, userIDs ...uint) error
}

type Publisher interface {
	Publish(ctx context.Context, ev *model.FollowEvent) error
}

type Recorder interface {
	Observe(op, result string)
}
