package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"` // bcrypt, never serialized
	Role         Role      `gorm:"type:varchar(16);default:user" json:"role"`
	JoinedAt     time.Time `json:"joinedAt"`
	History      []Plan    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"history"`
	UpdatedAt    time.Time `json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Sanitized returns a copy without password material, safe to hand to
// sessions and clients.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := u.Clone()
	out.PasswordHash = ""
	return out
}

// Clone deep-copies the user including its plan history.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.History != nil {
		out.History = make([]Plan, len(u.History))
		for i := range u.History {
			out.History[i] = u.History[i].Clone()
		}
	}
	return &out
}

// LatestBodyCode is the body code of the most recent plan, or "".
func (u *User) LatestBodyCode() string {
	if u == nil || len(u.History) == 0 {
		return ""
	}
	return u.History[0].BodyCode
}

// UserPatch carries the fields Update may change. Nil fields are left alone.
type UserPatch struct {
	Name         *string
	PasswordHash *string
	Role         *Role
}
