package domain

import "github.com/golang-jwt/jwt/v5"

// TokenKind - вид токена. Access и refresh взаимоисключающие:
// токен одного вида никогда не принимается там, где нужен другой.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

func (k TokenKind) Valid() bool {
	return k == TokenAccess || k == TokenRefresh
}

// Claims - полезная нагрузка подписанного токена: { sub, email, role, type }.
// sub лежит в RegisteredClaims.Subject.
type Claims struct {
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Type  TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenSubject - то, от чьего имени выпускается токен.
type TokenSubject struct {
	ID    string
	Email string
	Role  string
}

// Secure Token Issuing
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair - выдается парами при регистрации, логине и ротации.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // TTL access-токена в секундах
}

// AuthResult - ответ register/login/refresh.
type AuthResult struct {
	TokenPair
	User PrincipalView `json:"user"`
}
