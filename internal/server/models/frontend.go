package models

import "time"

// FrontendUser is the public projection of a User returned by the HTTP API.
// It never carries the password hash.
type FrontendUser struct {
	UUID           string     `json:"uuid"`
	LoginName      string     `json:"loginName"`
	DisplayName    string     `json:"displayName,omitempty"`
	AvatarID       *string    `json:"avatarId"`
	ContactEmail   string     `json:"contactEmail,omitempty"`
	Banned         bool       `json:"banned"`
	BannedAt       *time.Time `json:"bannedAt,omitempty"`
	Roles          []string   `json:"roles"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastModifiedAt time.Time  `json:"lastModifiedAt"`
}

// SimpleUser is the reduced projection served to any authenticated user.
type SimpleUser struct {
	UUID        string  `json:"uuid"`
	LoginName   string  `json:"loginName"`
	DisplayName string  `json:"displayName,omitempty"`
	AvatarID    *string `json:"avatarId"`
}

func ToFrontendUser(u *User) *FrontendUser {
	return &FrontendUser{
		UUID:           u.ID,
		LoginName:      u.LoginName,
		DisplayName:    u.DisplayName,
		AvatarID:       u.AvatarID,
		ContactEmail:   u.ContactEmail,
		Banned:         u.Banned,
		BannedAt:       u.BannedAt,
		Roles:          RoleSet(u.Roles...),
		CreatedAt:      u.CreatedAt,
		LastModifiedAt: u.LastModifiedAt,
	}
}

func ToSimpleUser(u *User) *SimpleUser {
	return &SimpleUser{UUID: u.ID, LoginName: u.LoginName, DisplayName: u.DisplayName, AvatarID: u.AvatarID}
}
