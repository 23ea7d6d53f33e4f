package models

import "time"

// Rollen für die Ownership-Prüfung.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User repräsentiert einen registrierten Forscher.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string `json:"name" gorm:"not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	Role         string `json:"role" gorm:"default:'user'"` // user, admin
}

// IsAdmin meldet, ob der User Admin-Rechte hat.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// TableName gibt explizit den Tabellennamen an.
func (User) TableName() string {
	return "users"
}
