package relationship

import "fmt"

// Result is the outcome of a follow or unfollow call.
type Result int

const (
	// Rejected: actor absent or actor and target are the same user.
	Rejected Result = iota
	// Unchanged: the edge was already in the requested state.
	Unchanged
	// Applied: the edge was created or removed and committed.
	Applied
)

func (r Result) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case Unchanged:
		return "unchanged"
	case Applied:
		return "applied"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	for _, v := range []Result{Rejected, Unchanged, Applied} {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", b)
}
