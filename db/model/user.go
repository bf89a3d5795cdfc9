package model

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

type User struct {
	Base
	Username string    `gorm:"uniqueIndex;not null" json:"username"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Pass     string    `json:"-"`
	Roles    []string  `gorm:"serializer:json" json:"roles"`
	Picture  string    `json:"picture"`
	Sessions []Session `json:"-"`

	// Following is loaded on demand from the follows table.
	Following IDSet `gorm:"-" json:"-"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanManage reports whether u may edit or delete target.
func (u *User) CanManage(target *User) bool {
	if u == nil || target == nil {
		return false
	}
	return u.ID == target.ID || u.HasRole(RoleAdmin)
}
