package domain

import "sync/atomic"

// Member represents user's participation meta for a connection.
// No transport or lifecycle logic here. The declared user may change on
// every join, so it is swapped atomically.
type Member struct {
	user atomic.Pointer[User]
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	m := &Member{}
	m.user.Store(user)
	return m
}

// User returns the declared user, nil before the first join.
func (m *Member) User() *User { return m.user.Load() }

func (m *Member) SetUser(u *User) { m.user.Store(u) }

func (m *Member) Name() string {
	if u := m.User(); u != nil {
		return u.Name
	}
	return ""
}
