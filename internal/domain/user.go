package domain

import "time"

type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked" // Kill-switch: вход и обновление сессии запрещены
)

// User - запись хранилища учетных данных.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // Никогда не отправляем на фронт
	Role         GlobalRole `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser - поля для создания записи. Пароль уже захэширован.
type NewUser struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         GlobalRole
}
