package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/cache"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"go.uber.org/zap"
)

// UserStore - хранилище учетных данных. Отсутствие записи - domain.ErrNotFound,
// дубликат email - domain.ErrConflict.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, nu domain.NewUser) (*domain.User, error)
}

// MembershipStore - членства принципала в workspace.
type MembershipStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Membership, error)
}

// LockoutChecker - L1-проверка kill switch.
type LockoutChecker interface {
	IsBlocked(userID string) bool
}

type AuthDeps struct {
	Users   UserStore
	Members MembershipStore
	Codec   auth.TokenCodec
	Cache   cache.Client
	Hasher  *Hasher
	Lockout LockoutChecker
	Auditor audit.Auditor
	Metrics *infra.Metrics
}

// AuthService - Session Manager. Единственный, кто создает, ротирует и удаляет
// refresh-записи: не больше одного живого refresh-токена на принципала.
type AuthService struct {
	users   UserStore
	members MembershipStore
	codec   auth.TokenCodec
	cache   cache.Client
	hasher  *Hasher
	lockout LockoutChecker
	auditor audit.Auditor
	metrics *infra.Metrics

	accessTTL   time.Duration
	refreshTTL  time.Duration
	minPassword int

	logger *zap.Logger
}

func NewAuthService(deps AuthDeps, cfg infra.AuthConfig, logger *zap.Logger) *AuthService {
	if deps.Hasher == nil {
		deps.Hasher = NewHasher(cfg.BcryptCost)
	}
	if deps.Auditor == nil {
		deps.Auditor = audit.Nop{}
	}
	if cfg.PasswordMinLength < 8 {
		cfg.PasswordMinLength = 8
	}
	return &AuthService{
		users:       deps.Users,
		members:     deps.Members,
		codec:       deps.Codec,
		cache:       deps.Cache,
		hasher:      deps.Hasher,
		lockout:     deps.Lockout,
		auditor:     deps.Auditor,
		metrics:     deps.Metrics,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		minPassword: cfg.PasswordMinLength,
		logger:      logger.Named("auth-service"),
	}
}

// Register создает учетную запись и открывает первую сессию.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (res *domain.AuthResult, err error) {
	defer s.observe("register", time.Now(), &err)

	req, err = validateRegister(req, s.minPassword)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.fatal("register", err)
	}

	user, err := s.users.Create(ctx, domain.NewUser{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.record(ctx, audit.Event{Email: req.Email, Action: audit.ActionRegister, Outcome: audit.OutcomeFailure, Reason: "email taken"})
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return nil, s.fatal("register", err)
	}

	// Запись создана. Если дальше упадет кэш, пользователь существует
	// и просто войдет заново.
	res, err = s.openSession(ctx, user, []domain.Membership{})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{UserID: user.ID, Email: user.Email, Action: audit.ActionRegister, Outcome: audit.OutcomeSuccess})
	return res, nil
}

// Login проверяет пароль и перезаписывает refresh-запись: предыдущая цепочка умирает.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (res *domain.AuthResult, err error) {
	defer s.observe("login", time.Now(), &err)

	req, err = validateLogin(req)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.CompareDummy(req.Password)
			return nil, s.deny(ctx, audit.ActionLogin, "", req.Email, "unknown email")
		}
		return nil, s.fatal("login", err)
	}

	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		return nil, s.deny(ctx, audit.ActionLogin, user.ID, req.Email, "password mismatch")
	}
	if s.blocked(user) {
		return nil, s.deny(ctx, audit.ActionLogin, user.ID, req.Email, "account blocked")
	}

	memberships, err := s.members.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.fatal("login", err)
	}

	res, err = s.openSession(ctx, user, memberships)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{UserID: user.ID, Email: user.Email, Action: audit.ActionLogin, Outcome: audit.OutcomeSuccess})
	return res, nil
}

// Refresh ротирует пару. Шаги a-d дают один и тот же внешний отказ.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *domain.AuthResult, err error) {
	defer s.observe("refresh", time.Now(), &err)

	// a. Подпись, структура, срок
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, s.deny(ctx, audit.ActionRefresh, "", "", "token invalid")
	}

	// b. Вид токена
	if claims.Type != domain.TokenRefresh {
		return nil, s.deny(ctx, audit.ActionRefresh, claims.Subject, "", "wrong token kind")
	}

	// c. Принципал существует и не заблокирован
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.deny(ctx, audit.ActionRefresh, claims.Subject, "", "principal not found")
		}
		return nil, s.fatal("refresh", err)
	}
	if s.blocked(user) {
		return nil, s.deny(ctx, audit.ActionRefresh, user.ID, user.Email, "account blocked")
	}

	// d. Предъявленный токен - текущий
	stored, err := s.cache.Get(ctx, infra.RefreshRecordKey(user.ID))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, s.deny(ctx, audit.ActionRefresh, user.ID, user.Email, "no refresh record")
		}
		return nil, s.fatal("refresh", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(fingerprint(refreshToken))) != 1 {
		return nil, s.deny(ctx, audit.ActionRefresh, user.ID, user.Email, "refresh record mismatch")
	}

	memberships, err := s.members.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.fatal("refresh", err)
	}

	// e. Новая пара, запись перезаписывается (last writer wins)
	res, err = s.openSession(ctx, user, memberships)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{UserID: user.ID, Email: user.Email, Action: audit.ActionRefresh, Outcome: audit.OutcomeSuccess})
	return res, nil
}

// Logout удаляет refresh-запись. Идемпотентен, ошибки кэша только логируются.
func (s *AuthService) Logout(ctx context.Context, principalID string) {
	var err error
	defer s.observe("logout", time.Now(), &err)

	if delErr := s.cache.Delete(ctx, infra.RefreshRecordKey(principalID)); delErr != nil {
		s.logger.Warn("failed to delete refresh record",
			zap.String("user_id", principalID), zap.Error(delErr))
	}
	s.record(ctx, audit.Event{UserID: principalID, Action: audit.ActionLogout, Outcome: audit.OutcomeSuccess})
}

// Authenticate - access-путь: токен -> принципал с актуальными ролями и членствами.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (p *domain.Principal, err error) {
	defer s.observe("authenticate", time.Now(), &err)

	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	// Refresh-токен на access-пути не принимается, даже если подпись верна
	if claims.Type != domain.TokenAccess {
		s.logger.Debug("non-access token on access path", zap.String("user_id", claims.Subject))
		return nil, domain.ErrUnauthenticated
	}
	if s.lockout != nil && s.lockout.IsBlocked(claims.Subject) {
		s.logger.Debug("blocked principal rejected", zap.String("user_id", claims.Subject))
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, s.fatal("authenticate", err)
	}
	if user.Status == domain.UserBlocked {
		return nil, domain.ErrUnauthenticated
	}

	memberships, err := s.members.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.fatal("authenticate", err)
	}
	return domain.NewPrincipal(user, memberships), nil
}

// openSession выпускает пару и перезаписывает refresh-запись.
// Ошибка записи фатальна: иначе инвариант одной сессии тихо ломается.
func (s *AuthService) openSession(ctx context.Context, user *domain.User, memberships []domain.Membership) (*domain.AuthResult, error) {
	subject := domain.TokenSubject{ID: user.ID, Email: user.Email, Role: string(user.Role)}

	access, _, err := s.codec.Issue(subject, domain.TokenAccess, s.accessTTL)
	if err != nil {
		return nil, s.fatal("issue", err)
	}
	refresh, _, err := s.codec.Issue(subject, domain.TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, s.fatal("issue", err)
	}

	if err := s.cache.Set(ctx, infra.RefreshRecordKey(user.ID), fingerprint(refresh), s.refreshTTL); err != nil {
		return nil, s.fatal("refresh record write", err)
	}

	return &domain.AuthResult{
		TokenPair: domain.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.accessTTL / time.Second),
		},
		User: domain.NewPrincipal(user, memberships).View(),
	}, nil
}

func (s *AuthService) blocked(u *domain.User) bool {
	if u.Status == domain.UserBlocked {
		return true
	}
	return s.lockout != nil && s.lockout.IsBlocked(u.ID)
}

// deny пишет внутреннюю причину в лог и аудит, наружу - единый отказ.
func (s *AuthService) deny(ctx context.Context, action audit.Action, userID, email, reason string) error {
	s.logger.Debug("authentication rejected",
		zap.String("action", string(action)),
		zap.String("user_id", userID),
		zap.String("reason", reason))
	s.record(ctx, audit.Event{UserID: userID, Email: email, Action: action, Outcome: audit.OutcomeFailure, Reason: reason})
	return domain.ErrUnauthenticated
}

// fatal логирует сырую ошибку хранилища, наружу уходит только таксономия.
func (s *AuthService) fatal(op string, err error) error {
	s.logger.Error("auth operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s", domain.ErrFatal, op)
}

func (s *AuthService) record(ctx context.Context, e audit.Event) {
	s.auditor.Record(ctx, e)
}

func (s *AuthService) observe(op string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.AuthDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.AuthTotal.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "fatal"
	}
}

// fingerprint - в кэше лежит только SHA-256 токена.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
