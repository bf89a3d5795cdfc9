package model

const (
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
)

// FollowEvent is published after a follow edge is created or removed.
type FollowEvent struct {
	Type      string `json:"type"`
	ActorID   uint   `json:"actor_id"`
	TargetID  uint   `json:"target_id"`
	Timestamp int64  `json:"timestamp"`
}
