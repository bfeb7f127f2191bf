package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	InternetAccess bool      `json:"internet_access"`
	DeviceMAC      string    `json:"device_mac,omitempty"`
	NotifyEmail    bool      `json:"notify_email"`
	NotifyApp      bool      `json:"notify_app"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) IsParent() bool {
	return u.Role == RoleParent
}

func (u *User) HasDevice() bool {
	return u.DeviceMAC != ""
}
