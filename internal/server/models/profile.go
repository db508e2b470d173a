package models

import "time"

// DefaultRole is assigned to every new profile.
const DefaultRole = "user"

// DefaultProfileName is used when a profile is provisioned without a name.
const DefaultProfileName = "User"

type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Banned    bool      `json:"banned"`
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate carries optional profile changes; nil fields are left as is.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}
