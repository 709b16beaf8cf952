package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/ai"
	"github.com/songzhibin97/pumpsentinel/internal/data"
	"github.com/songzhibin97/pumpsentinel/internal/metrics"
	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/tweet"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

var ErrConnection = errors.New("unable to connect to solana network")

// TokenStream produces new token events, see chain/monitor.Monitor.
type TokenStream interface {
	Start(ctx context.Context) <-chan models.NewTokenEvent
	Err() error
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

type TimelineCollector interface {
	CollectData(ctx context.Context, mint string, launchedAt time.Time) (*models.TokenTimeline, error)
	TokenPrice(ctx context.Context, mint string) (*float64, error)
}

type HoldingReader interface {
	CreatorHolding(ctx context.Context, wallet, mint string) models.CreatorHolding
}

type ThreadWriter interface {
	AnalyzeTokenRisk(ctx context.Context, timeline models.TokenTimeline, holding models.CreatorHolding) string
}

type Poster interface {
	PostThread(ctx context.Context, tweets []string) ([]string, error)
}

type Config struct {
	HourlyTokenLimit int           // 每小时最多处理的代币数
	TweetsPerToken   int           // 每个代币占用的推文额度
	MinTokenPrice    float64       // 低于该价格直接跳过
	MaxTweetLength   int           // 单条推文长度
	MaxRetries       int           // 初始化重试次数
	RetryDelay       time.Duration // 初始化重试基础延迟，指数递增
	ConnectTimeout   time.Duration // 连接测试超时
	Window           time.Duration // 计数窗口
}

func DefaultConfig() Config {
	return Config{
		HourlyTokenLimit: 20,
		TweetsPerToken:   4,
		MinTokenPrice:    0.0001,
		MaxTweetLength:   tweet.MaxLength,
		MaxRetries:       3,
		RetryDelay:       5 * time.Second,
		ConnectTimeout:   5 * time.Second,
		Window:           time.Hour,
	}
}

// HourlyTweetLimit is the tweet budget implied by the token limit.
func (c Config) HourlyTweetLimit() int {
	return c.HourlyTokenLimit * c.TweetsPerToken
}

// Status 服务运行状态
type Status struct {
	IsInitialized  bool `json:"is_initialized"`
	RetryCount     int  `json:"retry_count"`
	HasConnection  bool `json:"has_connection"`
	HasMonitor     bool `json:"has_monitor"`
	QueueLength    int  `json:"queue_length"`
	TokensThisHour int  `json:"tokens_this_hour"`
}

// Service drives the new token pipeline: detect, analyse, tweet and persist.
type Service struct {
	cfg      Config
	health   HealthChecker
	stream   TokenStream
	timeline TimelineCollector
	holdings HoldingReader
	writer   ThreadWriter
	poster   Poster
	storage  data.DataStorage
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	initialized   bool
	retryCount    int
	hasConnection bool
	streaming     bool
	queue         []models.NewTokenEvent
	tweetCount    int
	windowStart   time.Time
	listeners     []func(models.TokenLaunchedEvent)

	wake chan struct{}
}

// NewService wires the pipeline. storage may be nil.
func NewService(
	cfg Config,
	health HealthChecker,
	stream TokenStream,
	timeline TimelineCollector,
	holdings HoldingReader,
	writer ThreadWriter,
	poster Poster,
	storage data.DataStorage,
	log *slog.Logger,
) *Service {
	def := DefaultConfig()
	if cfg.HourlyTokenLimit <= 0 {
		cfg.HourlyTokenLimit = def.HourlyTokenLimit
	}
	if cfg.TweetsPerToken <= 0 {
		cfg.TweetsPerToken = def.TweetsPerToken
	}
	if cfg.MaxTweetLength <= 0 {
		cfg.MaxTweetLength = def.MaxTweetLength
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}

	return &Service{
		cfg:      cfg,
		health:   health,
		stream:   stream,
		timeline: timeline,
		holdings: holdings,
		writer:   writer,
		poster:   poster,
		storage:  storage,
		log:      log,
		now:      time.Now,
		sleep:    retry.Sleep,
		wake:     make(chan struct{}, 1),
	}
}

// OnTokenLaunched registers fn for every processed token, including failed ones.
func (s *Service) OnTokenLaunched(fn func(models.TokenLaunchedEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Initialize tests the RPC connection, retrying with exponential delay.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		s.log.Info("service already initialized")
		return nil
	}
	s.mu.Unlock()

	for {
		err := s.connect(ctx)
		if err == nil {
			s.mu.Lock()
			s.initialized = true
			s.hasConnection = true
			s.retryCount = 0
			s.windowStart = s.now()
			s.mu.Unlock()
			s.log.Info("monitor service initialized")
			return nil
		}

		s.mu.Lock()
		s.retryCount++
		attempt := s.retryCount
		s.mu.Unlock()

		if attempt > s.cfg.MaxRetries {
			s.log.Error("max retries reached, giving up", "err", err)
			s.Close()
			return fmt.Errorf("failed to initialize monitor service: %w", err)
		}

		delay := s.cfg.RetryDelay * time.Duration(1<<(attempt-1))
		s.log.Warn("connection failed, retrying", "attempt", attempt, "max", s.cfg.MaxRetries, "delay", delay, "err", err)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Service) connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	if err := s.health.Health(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Run initializes the service and consumes the token stream until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	events := s.stream.Start(ctx)
	s.mu.Lock()
	s.streaming = true
	s.mu.Unlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.worker(ctx, done)
	}()

	for ev := range events {
		s.HandleNewToken(ev)
	}

	close(done)
	wg.Wait()
	s.Close()

	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("token stream stopped: %w", err)
	}
	return ctx.Err()
}

// HandleNewToken queues ev in arrival order and wakes the worker.
func (s *Service) HandleNewToken(ev models.NewTokenEvent) {
	s.log.Info("new token detected", "token", ev.TokenAddress, "signature", ev.Signature, "timestamp", ev.Timestamp)

	s.mu.Lock()
	s.queue = append(s.queue, ev)
	metrics.QueueLength.Set(float64(len(s.queue)))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// worker drains the queue on every wake up; once done is closed it drains a last time and exits.
func (s *Service) worker(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.drain(ctx)
		case <-done:
			s.drain(ctx)
			return
		}
	}
}

// drain processes the queue until it is empty, pausing whenever the hourly budget is spent.
func (s *Service) drain(ctx context.Context) {
	for ctx.Err() == nil {
		if s.pending() == 0 {
			s.log.Debug("queue empty, waiting for new tokens")
			return
		}
		if wait := s.budgetWait(); wait > 0 {
			s.log.Info("hourly limit reached, waiting for next window", "wait", wait.Round(time.Second))
			if err := s.sleep(ctx, wait); err != nil {
				return
			}
			s.resetWindow()
			continue
		}

		ev, ok := s.dequeue()
		if !ok {
			return
		}
		s.processQueued(ctx, ev)
	}
}

// budgetWait resets an expired window and returns how long to wait when the budget is spent.
func (s *Service) budgetWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= s.cfg.Window {
		if s.tweetCount > 0 {
			s.log.Info("resetting hourly tweet counter")
		}
		s.tweetCount = 0
		s.windowStart = now
	}
	if s.tweetCount < s.cfg.HourlyTweetLimit() {
		return 0
	}
	return s.windowStart.Add(s.cfg.Window).Sub(now)
}

func (s *Service) resetWindow() {
	s.mu.Lock()
	s.tweetCount = 0
	s.windowStart = s.now()
	s.mu.Unlock()
}

func (s *Service) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Service) dequeue() (models.NewTokenEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return models.NewTokenEvent{}, false
	}
	ev := s.queue[0]
	s.queue[0] = models.NewTokenEvent{}
	s.queue = s.queue[1:]
	metrics.QueueLength.Set(float64(len(s.queue)))
	return ev, true
}

func (s *Service) processQueued(ctx context.Context, ev models.NewTokenEvent) {
	price, err := s.timeline.TokenPrice(ctx, ev.TokenAddress)
	if err != nil {
		s.log.Warn("failed to get token price", "token", ev.TokenAddress, "err", err)
	}
	if price == nil || *price < s.cfg.MinTokenPrice {
		s.log.Info("token price below threshold, skipping", "token", ev.TokenAddress, "price", price, "min", s.cfg.MinTokenPrice)
		metrics.TokensProcessed.WithLabelValues("skipped_price").Inc()
		return
	}

	event, err := s.ProcessToken(ctx, ev)
	if err != nil {
		s.log.Error("failed to process token", "token", ev.TokenAddress, "err", err)
		metrics.TokensProcessed.WithLabelValues("failed").Inc()
		event = &models.TokenLaunchedEvent{
			TokenAddress:    ev.TokenAddress,
			LaunchTimestamp: ev.Timestamp,
			Transaction:     ev.Signature,
		}
	} else {
		metrics.TokensProcessed.WithLabelValues("posted").Inc()
	}
	s.emit(*event)

	s.mu.Lock()
	s.tweetCount += s.cfg.TweetsPerToken
	processed := s.tweetCount / s.cfg.TweetsPerToken
	s.mu.Unlock()
	s.log.Info("hourly progress", "tokens", processed, "limit", s.cfg.HourlyTokenLimit)
}

// ProcessToken runs timeline, holding, LLM thread, split and post for one token,
// then persists the resulting event.
func (s *Service) ProcessToken(ctx context.Context, ev models.NewTokenEvent) (*models.TokenLaunchedEvent, error) {
	start := time.Now()
	defer metrics.ObserveSince("monitor", start)

	// 1. 收集时间线数据
	timeline, err := s.timeline.CollectData(ctx, ev.TokenAddress, ev.Timestamp)
	if err != nil {
		return nil, err
	}

	// 2. 创建者持仓
	holding := s.holdings.CreatorHolding(ctx, timeline.Creator, ev.TokenAddress)
	timeline.CreatorHolding = holding

	// 3. AI 风险分析
	analysis := s.writer.AnalyzeTokenRisk(ctx, *timeline, holding)

	event := &models.TokenLaunchedEvent{
		TokenAddress:    ev.TokenAddress,
		TokenName:       timeline.TokenName,
		Creator:         timeline.Creator,
		LaunchTimestamp: ev.Timestamp,
		CreatedAt:       timeline.CreatedAt,
		Transaction:     ev.Signature,
		Analysis:        analysis,
		Tweets:          []string{},
	}

	// 4. 拆分并发送推文
	if ai.IsFailedAnalysis(analysis) {
		s.log.Warn("analysis failed, not tweeting", "token", ev.TokenAddress, "analysis", analysis)
	} else {
		event.Tweets = s.splitThread(analysis)
		if _, err := s.poster.PostThread(ctx, event.Tweets); err != nil {
			s.log.Error("failed to send tweets", "token", ev.TokenAddress, "err", err)
		}
	}

	// 5. 保存事件
	if s.storage != nil {
		if err := s.storage.SaveLaunchedEvent(ctx, event); err != nil {
			s.log.Error("failed to save launched event", "token", ev.TokenAddress, "err", err)
		}
	}

	s.log.Info("token processed", "token", ev.TokenAddress, "name", event.TokenName, "tweets", len(event.Tweets))
	return event, nil
}

// splitThread turns each thread part into one or more tweets of at most MaxTweetLength.
func (s *Service) splitThread(analysis string) []string {
	return tweet.Flatten(strings.Split(analysis, "\n\n"), s.cfg.MaxTweetLength)
}

func (s *Service) emit(event models.TokenLaunchedEvent) {
	s.mu.Lock()
	listeners := append([]func(models.TokenLaunchedEvent){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Status reports a snapshot of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := 0
	if s.cfg.TweetsPerToken > 0 {
		tokens = s.tweetCount / s.cfg.TweetsPerToken
	}
	return Status{
		IsInitialized:  s.initialized,
		RetryCount:     s.retryCount,
		HasConnection:  s.hasConnection,
		HasMonitor:     s.streaming,
		QueueLength:    len(s.queue),
		TokensThisHour: tokens,
	}
}

// Close resets the service state. Queued tokens are dropped.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	s.hasConnection = false
	s.streaming = false
	s.retryCount = 0
	s.queue = nil
	metrics.QueueLength.Set(0)
	s.log.Info("service cleaned up")
}
