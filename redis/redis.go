package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/redis/go-redis/v9"
)

const followingKeyPrefix = "following:"

// versionTTL keeps a version around far longer than any read in flight.
const versionTTL = 24 * time.Hour

var errStaleVersion = errors.New("following set invalidated")

// emptyMember marks a cached empty set so that misses and empty sets differ.
const emptyMember = "-"

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func Ping(ctx context.Context, client redis.UniversalClient) error {
	return client.Ping(ctx).Err()
}

// FollowingCache stores each user's following set as a redis set.
type FollowingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewFollowingCache(client redis.UniversalClient, ttl time.Duration) *FollowingCache {
	return &FollowingCache{client: client, ttl: ttl}
}

// The hash tag keeps a set and its version in one cluster slot for WATCH.
func followingKey(userID uint) string {
	return followingKeyPrefix + "{" + strconv.FormatUint(uint64(userID), 10) + "}"
}

func versionKey(userID uint) string {
	return followingKey(userID) + ":version"
}

func (c *FollowingCache) Get(ctx context.Context, userID uint) (model.IDSet, bool, error) {
	members, err := c.client.SMembers(ctx, followingKey(userID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	ids := model.NewIDSet()
	for _, m := range members {
		if m == emptyMember {
			continue
		}
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, false, err
		}
		ids.Add(uint(id))
	}
	return ids, true, nil
}

func (c *FollowingCache) Version(ctx context.Context, userID uint) (uint64, error) {
	v, err := c.client.Get(ctx, versionKey(userID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetIfVersion replaces the cached set unless the user was invalidated
// since version was read.
func (c *FollowingCache) SetIfVersion(ctx context.Context, userID uint, ids model.IDSet, version uint64) (bool, error) {
	key, vkey := followingKey(userID), versionKey(userID)
	members := make([]interface{}, 0, ids.Len()+1)
	members = append(members, emptyMember)
	for _, id := range ids.Slice() {
		members = append(members, strconv.FormatUint(uint64(id), 10))
	}
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SAdd(ctx, key, members...)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Invalidate drops the cached sets and bumps their versions.
func (c *FollowingCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Del(ctx, followingKey(id))
			pipe.Incr(ctx, versionKey(id))
			pipe.Expire(ctx, versionKey(id), versionTTL)
		}
		return nil
	})
	return err
}
