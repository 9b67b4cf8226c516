package user

import "time"

type AccountType string

const (
	TypePersonal AccountType = "personal"
	TypeBusiness AccountType = "business"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type User struct {
	ID            int64       `json:"id"`
	Phone         string      `json:"phone"`
	Name          string      `json:"name"`
	Username      string      `json:"username,omitempty"`
	Email         string      `json:"email,omitempty"`
	Bio           string      `json:"bio,omitempty"`
	AccountType   AccountType `json:"accountType"`
	Status        Status      `json:"status"`
	TrustScore    int         `json:"trustScore"`
	PhoneVerified bool        `json:"phoneVerified"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (u *User) Suspended() bool { return u.Status == StatusSuspended }
