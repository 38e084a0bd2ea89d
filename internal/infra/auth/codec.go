package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/workspace-api/internal/domain"
	"go.uber.org/zap"
)

// TokenCodec - подпись и проверка токенов. Кодек не знает про виды токенов:
// сверка payload.type с ожидаемым видом - задача Session Manager.
type TokenCodec interface {
	Issue(subject domain.TokenSubject, kind domain.TokenKind, ttl time.Duration) (string, time.Time, error)
	Verify(tokenStr string) (*domain.Claims, error)
}

// Codec реализует TokenCodec поверх JWT (HS256 с секретом сервера или RS256).
type Codec struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	now       func() time.Time
	logger    *zap.Logger
}

type CodecOption func(*Codec)

// WithClock подменяет часы (тесты, проверка истечения).
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func WithIssuer(iss string) CodecOption {
	return func(c *Codec) { c.issuer = iss }
}

func WithLogger(l *zap.Logger) CodecOption {
	return func(c *Codec) { c.logger = l.Named("token-codec") }
}

const minSecretLen = 32

// NewHMACCodec - подпись секретом сервера (HS256).
func NewHMACCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return newCodec(jwt.SigningMethodHS256, key, key, opts), nil
}

// NewRSACodec - асимметричная подпись (RS256): закрытый ключ подписывает, открытый проверяет.
func NewRSACodec(priv *rsa.PrivateKey, pub *rsa.PublicKey, opts ...CodecOption) (*Codec, error) {
	if priv == nil || pub == nil {
		return nil, errors.New("rsa key pair is required")
	}
	return newCodec(jwt.SigningMethodRS256, priv, pub, opts), nil
}

func newCodec(m jwt.SigningMethod, sign, verify interface{}, opts []CodecOption) *Codec {
	c := &Codec{
		method:    m,
		signKey:   sign,
		verifyKey: verify,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue выпускает токен с { sub, email, role, type } и exp = now + ttl.
// jti делает каждый токен уникальным даже при совпадении секунды выпуска.
func (c *Codec) Issue(subject domain.TokenSubject, kind domain.TokenKind, ttl time.Duration) (string, time.Time, error) {
	if subject.ID == "" || subject.Email == "" || subject.Role == "" {
		return "", time.Time{}, errors.New("token subject is incomplete")
	}
	if !kind.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token ttl must be positive")
	}

	now := c.now()
	expiresAt := now.Add(ttl)
	claims := &domain.Claims{
		Email: subject.Email,
		Role:  subject.Role,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   subject.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify проверяет подпись, структуру и срок. Наружу всегда ErrInvalidToken,
// причина (истек / битый / чужой алгоритм) уходит только в лог.
func (c *Codec) Verify(tokenStr string) (*domain.Claims, error) {
	if tokenStr == "" {
		return nil, domain.ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return c.verifyKey, nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		c.logger.Debug("token rejected",
			zap.Bool("expired", errors.Is(err, jwt.ErrTokenExpired)),
			zap.Error(err))
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if err := validatePayload(claims); err != nil {
		c.logger.Debug("token payload malformed", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// validatePayload - обязательные поля payload должны быть на месте.
// Несовпадение типов JSON отсекает уже json.Unmarshal внутри парсера.
func validatePayload(c *domain.Claims) error {
	switch {
	case c.Subject == "":
		return errors.New("missing sub")
	case c.Email == "":
		return errors.New("missing email")
	case c.Role == "":
		return errors.New("missing role")
	case !c.Type.Valid():
		return fmt.Errorf("bad type %q", c.Type)
	}
	return nil
}
