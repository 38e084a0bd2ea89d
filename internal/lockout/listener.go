package lockout

import (
	"context"
	"strings"
	"time"

	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

const (
	resubscribeDelay = time.Second
	subscribeBackoff = 5 * time.Second
)

// Listen - "живучая" подписка на сигналы kill switch. Блокирует до отмены ctx.
// При каждом успешном подключении L1 синхронизируется из Redis: сигналы,
// пропущенные во время разрыва, не теряются.
func (m *Manager) Listen(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanKillSwitch)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanKillSwitch), zap.Error(err))
			if !sleepCtx(ctx, subscribeBackoff) {
				return
			}
			continue
		}

		if err := m.Init(ctx); err != nil {
			m.logger.Error("sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				m.logger.Info("kill-switch listener stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				userID, blocked, ok := parseSignal(msg.Payload)
				if !ok {
					m.logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}
				m.Apply(userID, blocked)
				m.logger.Info("kill-switch signal applied",
					zap.String("user_id", userID), zap.Bool("blocked", blocked))
			}
		}

		_ = pubsub.Close()
		if !sleepCtx(ctx, resubscribeDelay) {
			return
		}
	}
}

// formatSignal - формат сообщения "user_id:true|false".
func formatSignal(userID string, blocked bool) string {
	if blocked {
		return userID + ":true"
	}
	return userID + ":false"
}

func parseSignal(payload string) (string, bool, bool) {
	i := strings.LastIndexByte(payload, ':')
	if i <= 0 || i == len(payload)-1 {
		return "", false, false
	}
	userID, val := payload[:i], payload[i+1:]
	switch val {
	case "true", "on":
		return userID, true, true
	case "false", "off":
		return userID, false, true
	default:
		return "", false, false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
