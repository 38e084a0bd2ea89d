package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration // Время, через которое CB попробует "закрыться"
	Failures    uint32        // Подряд идущих ошибок до размыкания
}

// ErrUnavailable - кэш недоступен (предохранитель разомкнут).
var ErrUnavailable = errors.New("cache: unavailable")

// Breaker оборачивает Client предохранителем. Промах по ключу - не отказ кэша.
// Ретраев нет: сервисный слой получает ошибку сразу.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Client, s BreakerSettings, metrics *infra.Metrics, logger *zap.Logger) *Breaker {
	logger = logger.Named("cache-breaker")
	if s.Failures == 0 {
		s.Failures = 5
	}
	failures := s.Failures

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "token-cache",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				if to == gobreaker.StateOpen {
					metrics.CacheBreakerState.Set(1)
				} else {
					metrics.CacheBreakerState.Set(0)
				}
			}
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Get(ctx context.Context, key string) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return "", b.wrap(err)
	}
	return res.(string), nil
}

func (b *Breaker) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return b.wrap(err)
}

func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return b.wrap(err)
}

func (b *Breaker) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
