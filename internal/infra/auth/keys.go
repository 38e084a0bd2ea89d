package auth

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey превращает []byte в объект для подписи
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// NewCodecFromConfig выбирает RS256, если задана пара ключей, иначе HS256 с секретом.
func NewCodecFromConfig(cfg infra.AuthConfig, logger *zap.Logger) (*Codec, error) {
	opts := []CodecOption{WithIssuer(cfg.Issuer), WithLogger(logger)}

	if len(cfg.PrivateKey) > 0 && len(cfg.PublicKey) > 0 {
		priv, err := ParseRSAPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := ParseRSAPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		return NewRSACodec(priv, pub, opts...)
	}
	return NewHMACCodec([]byte(cfg.JWTSecret), opts...)
}
