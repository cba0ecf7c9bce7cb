package jackpot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/metrics"
)

// DefaultPollInterval is the default interval between contract reads.
const DefaultPollInterval = 10 * time.Second

// Service polls the jackpot gate and contract balance and broadcasts
// changes. It is transport-agnostic: callers wire HTTP routes and subscribe
// with Listen().
type Service struct {
	reader   Reader
	broad    *Broadcaster
	logger   zerolog.Logger
	interval time.Duration

	mu      sync.RWMutex
	current Update
	hasData bool

	refreshMu  sync.Mutex
	refreshing bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new jackpot service. Call Start to begin polling.
func NewService(cfg ServiceConfig) *Service {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		reader:   cfg.Reader,
		broad:    NewBroadcaster(16),
		logger:   cfg.Logger.With().Str("component", "jackpot").Logger(),
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start reads the contract once and then on every tick until Stop.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Jackpot refresh failed")
	}
}

// Refresh reads the contract now and broadcasts the result if it changed.
// Overlapping refreshes are skipped and return the last snapshot.
func (s *Service) Refresh(ctx context.Context) (Update, error) {
	s.refreshMu.Lock()
	if s.refreshing {
		s.refreshMu.Unlock()
		u, _ := s.Current()
		return u, nil
	}
	s.refreshing = true
	s.refreshMu.Unlock()

	defer func() {
		s.refreshMu.Lock()
		s.refreshing = false
		s.refreshMu.Unlock()
	}()

	status, err := s.reader.JackpotStatus(ctx)
	if err != nil {
		return Update{}, err
	}
	balance, err := s.reader.ContractBalance(ctx)
	if err != nil {
		return Update{}, err
	}
	status.ContractBalance = game.WeiToETH(balance)
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	update := NewUpdate(status)

	s.mu.Lock()
	changed := !s.hasData || !s.current.Equal(status)
	s.current = update
	s.hasData = true
	s.mu.Unlock()

	metrics.JackpotProgress.Set(update.Progress)
	if changed {
		n := s.broad.Send(update)
		s.logger.Debug().
			Bool("unlocked", status.IsUnlocked).
			Uint64("current_spins", status.CurrentSpins).
			Uint64("spins_needed", status.SpinsNeeded).
			Str("balance", status.ContractBalance.String()).
			Int("listeners", n).
			Msg("Jackpot status changed")
	}
	return update, nil
}

// Current returns the last snapshot. ok is false before the first
// successful read.
func (s *Service) Current() (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.hasData
}

// Listen returns a channel of changed snapshots plus a cancel function.
func (s *Service) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	return s.broad.Listen(ctx)
}

// Stop stops polling and waits for the loop to exit. It is safe to call
// more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
