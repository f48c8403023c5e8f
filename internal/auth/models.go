package auth

import "time"

type Credential struct {
	UID          string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Credential) TableName() string { return "credentials" }

type AuthSession struct {
	ID        string `gorm:"primaryKey;size:64"`
	UID       string `gorm:"index;size:64;not null"`
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuthSession) TableName() string { return "auth_sessions" }
