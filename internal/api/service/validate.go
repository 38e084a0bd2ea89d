package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xela07ax/workspace-api/internal/domain"
)

const (
	maxEmailLen    = 254
	maxPasswordLen = 72 // Предел bcrypt
	maxNameRunes   = 100
)

func invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrInvalidInput, field, msg)
}

// NormalizeEmail - trim + lower-case. Хранилище ищет по нормализованному адресу.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	if len(email) > maxEmailLen {
		return invalid("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	// "Alice <a@b.c>" тоже парсится: требуем голый адрес
	if err != nil || addr.Address != email {
		return invalid("email", "is malformed")
	}
	return nil
}

func validatePassword(password string, minLen int) error {
	if len(password) < minLen {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minLen))
	}
	if len(password) > maxPasswordLen {
		return invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return invalid("name", "is required")
	}
	if n > maxNameRunes {
		return invalid("name", "is too long")
	}
	return nil
}

// validateRegister проверяет и нормализует запрос регистрации.
func validateRegister(req domain.RegisterRequest, minPassword int) (domain.RegisterRequest, error) {
	req.Email = NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if err := validateEmail(req.Email); err != nil {
		return req, err
	}
	if err := validatePassword(req.Password, minPassword); err != nil {
		return req, err
	}
	if err := validateName(req.Name); err != nil {
		return req, err
	}
	return req, nil
}

// validateLogin проверяет только форму: политику пароля на входе не раскрываем.
func validateLogin(req domain.LoginRequest) (domain.LoginRequest, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := validateEmail(req.Email); err != nil {
		return req, err
	}
	if req.Password == "" {
		return req, invalid("password", "is required")
	}
	if len(req.Password) > maxPasswordLen {
		return req, invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLen))
	}
	return req, nil
}

// ValidateUserID - идентификаторы пользователей только UUID.
func ValidateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("user id", "is malformed")
	}
	return nil
}
