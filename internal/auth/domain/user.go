package domain

import "time"

// Roles a user can hold. New accounts get RoleUser.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string, peppered
	FirstName    string
	LastName     string
	Gender       string
	Role         string
	ImageID      *string // object key id of the profile image, if any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of a User.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Role      string    `json:"role"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		Role:      u.Role,
		HasImage:  u.ImageID != nil && *u.ImageID != "",
		CreatedAt: u.CreatedAt,
	}
}
