package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/chain"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/cache"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

// PoolInitLog marks a Raydium pool initialisation.
const PoolInitLog = "initialize2: InitializeInstruction2"

var ErrRetriesExhausted = errors.New("log subscription retries exhausted")

type Config struct {
	MaxRetries        int           // 连续失败上限
	RetryDelay        time.Duration // 重连基础延迟
	TokenAccountIndex int           // 新代币 mint 在账户列表中的位置
	Fetch             retry.Policy  // 拉取交易的重试策略
	DedupSize         int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		RetryDelay:        5 * time.Second,
		TokenAccountIndex: 18,
		Fetch:             retry.Policy{Attempts: 3, Base: time.Second},
		DedupSize:         4096,
	}
}

// Monitor turns pool initialisation logs into NewTokenEvents.
type Monitor struct {
	source LogSource
	client chain.Client
	cfg    Config
	log    *slog.Logger
	seen   *cache.TTL[struct{}]
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	err error
}

func New(source LogSource, client chain.Client, cfg Config, log *slog.Logger) *Monitor {
	return &Monitor{
		source: source,
		client: client,
		cfg:    cfg,
		log:    log,
		seen:   cache.New[struct{}](cfg.DedupSize, time.Hour),
		now:    time.Now,
		sleep:  retry.Sleep,
	}
}

// Start streams events until ctx ends or reconnects are exhausted. The channel is closed on exit.
func (m *Monitor) Start(ctx context.Context) <-chan models.NewTokenEvent {
	out := make(chan models.NewTokenEvent, 100)
	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()
		m.setErr(m.run(ctx, out, &wg))
	}()
	return out
}

// Err reports why the stream ended; nil after a normal shutdown.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Monitor) setErr(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Monitor) run(ctx context.Context, out chan<- models.NewTokenEvent, wg *sync.WaitGroup) error {
	policy := retry.Policy{Attempts: m.cfg.MaxRetries, Base: m.cfg.RetryDelay}
	failures := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stream, err := m.source.Subscribe(ctx)
		if err == nil {
			m.log.Info("subscribed to program logs")
			failures = 0
			err = m.listen(ctx, stream, out, wg)
			stream.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		if failures > m.cfg.MaxRetries {
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}

		delay := policy.Backoff(failures - 1)
		reason := "error"
		if isRateLimited(err) {
			delay *= 2
			reason = "rate_limited"
		}
		metrics.Reconnects.WithLabelValues(reason).Inc()
		m.log.Error("log subscription failed, reconnecting", "err", err, "attempt", failures, "delay", delay)

		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (m *Monitor) listen(ctx context.Context, stream LogStream, out chan<- models.NewTokenEvent, wg *sync.WaitGroup) error {
	for {
		ev, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if !IsPoolInit(ev) {
			continue
		}
		if m.seen.Seen(ev.Signature, struct{}{}) {
			continue
		}

		metrics.TokensDetected.Inc()
		wg.Add(1)
		go func(sig string) {
			defer wg.Done()
			m.handle(ctx, sig, out)
		}(ev.Signature)
	}
}

// IsPoolInit reports a successful transaction that initialised a pool.
func IsPoolInit(ev *LogEvent) bool {
	if ev == nil || ev.Failed {
		return false
	}
	for _, line := range ev.Logs {
		if strings.Contains(line, PoolInitLog) {
			return true
		}
	}
	return false
}

func (m *Monitor) handle(ctx context.Context, signature string, out chan<- models.NewTokenEvent) {
	var tx *chain.Transaction
	err := retry.Do(ctx, m.cfg.Fetch, func(ctx context.Context) error {
		var err error
		tx, err = m.client.Transaction(ctx, signature)
		return err
	})
	if err != nil {
		m.log.Error("failed to fetch pool transaction", "signature", signature, "err", err)
		return
	}

	if len(tx.AccountKeys) <= m.cfg.TokenAccountIndex {
		m.log.Warn("pool transaction has too few account keys", "signature", signature, "keys", len(tx.AccountKeys))
		return
	}

	event := models.NewTokenEvent{
		TokenAddress: tx.AccountKeys[m.cfg.TokenAccountIndex],
		Signature:    signature,
		Timestamp:    tx.BlockTime,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}

	m.log.Info("new token detected", "token", event.TokenAddress, "signature", signature)

	select {
	case out <- event:
	case <-ctx.Done():
	}
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}
