package audit

/*
Файл recorder.go - журнал событий безопасности (Audit Trail) для auth-подсистемы.

- Non-blocking: события уходят в буферизованный канал, запись в БД не влияет на время ответа.
- Batching: накопление и пакетная запись по таймеру или при достижении лимита.
- Drain Pattern: при остановке канал закрывается, воркер вычитывает остатки и делает финальный flush.
- Load Shedding: при переполнении буфера событие пишется в zap и отбрасывается.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

// Storage определяет, куда физически будут сохраняться события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

// Auditor - то, что нужно сервисам и гардам.
type Auditor interface {
	Record(ctx context.Context, e Event)
}

type Recorder struct {
	ch            chan Event
	repo          Storage
	batchSize     int
	flushInterval time.Duration
	metrics       *infra.Metrics
	logger        *zap.Logger
	wg            sync.WaitGroup

	// mu: отправка в ch под RLock, закрытие ch под Lock
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(repo Storage, cfg infra.AuditConfig, metrics *infra.Metrics, logger *zap.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	return &Recorder{
		ch:            make(chan Event, cfg.BufferSize),
		repo:          repo,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		metrics:       metrics,
		logger:        logger.Named("audit"),
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(r.ch)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("auditor stopped gracefully")
}

// Record дополняет событие метаданными запроса и ставит в очередь.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if m, ok := MetaFromContext(ctx); ok {
		if e.RequestID == "" {
			e.RequestID = m.RequestID
		}
		if e.RemoteIP == "" {
			e.RemoteIP = m.RemoteIP
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "auditor is stopping")
		return
	}

	select {
	case r.ch <- e:
		if r.metrics != nil {
			r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
		}
	default:
		// Backpressure: пишем в стандартный логгер, чтобы след остался хотя бы там
		r.drop(e, "audit buffer overflow")
	}
}

func (r *Recorder) drop(e Event, why string) {
	if r.metrics != nil {
		r.metrics.AuditDropped.Inc()
	}
	r.logger.Warn("audit event dropped",
		zap.String("reason", why),
		zap.String("action", string(e.Action)),
		zap.String("outcome", string(e.Outcome)),
		zap.String("user_id", e.UserID),
		zap.String("request_id", e.RequestID))
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, r.batchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст может быть уже закрыт
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.WriteBatch(ctx, batch); err != nil {
			r.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
		if r.metrics != nil {
			r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
		}
	}

	for {
		select {
		case e, ok := <-r.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Nop - аудитор-заглушка.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
