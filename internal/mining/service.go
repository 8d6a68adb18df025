// Package mining implements the per-user mining-session state machine:
// a start command opens a running session, a timer matures it, and
// completion credits the reward, clears the session and notifies the
// user. Crediting always precedes session removal, and removal happens
// whether or not the notification is delivered.
package mining

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raulk/clock"
	"github.com/rs/zerolog/log"

	"github.com/kubotlabs/minebot/pkg/models"
)

// Notifier delivers session lifecycle messages to a chat channel.
// Delivery failures are logged and swallowed; they never unwind a
// committed completion.
type Notifier interface {
	Send(ctx context.Context, channelID, text string) error
}

// Options hold the session tunables. The service re-reads them on every
// start and completion, so a hot-reloaded config applies to subsequent
// sessions without a restart.
type Options struct {
	SessionDuration time.Duration
	RewardAmount    int64
}

// StaticOptions wraps fixed options for callers without config reload.
func StaticOptions(o Options) func() Options {
	return func() Options { return o }
}

// Status describes a user's current mining state.
type Status struct {
	Mining    bool      `json:"mining"`
	StartedAt time.Time `json:"started_at,omitempty"`
	MaturesAt time.Time `json:"matures_at,omitempty"`
}

// Service orchestrates session start, timed completion, reward
// crediting and notification dispatch.
type Service struct {
	clk      clock.Clock
	store    SessionStore
	ledger   Ledger
	notifier Notifier
	opts     func() Options
	locks    *userLocks
	metrics  *Metrics

	timersMu sync.Mutex
	timers   map[string]*clock.Timer
}

// NewService wires the state machine to its collaborators. Pass
// clock.New() outside tests.
func NewService(clk clock.Clock, store SessionStore, ledger Ledger, notifier Notifier, opts func() Options) *Service {
	return &Service{
		clk:      clk,
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		opts:     opts,
		locks:    newUserLocks(),
		metrics:  &Metrics{},
		timers:   make(map[string]*clock.Timer),
	}
}

// StartSession opens a mining session for the user. If one is already
// running the call is an idempotent no-op that tells the user to wait;
// otherwise it records the session, schedules exactly one completion
// timer and confirms the start. Returns immediately in either case.
func (s *Service) StartSession(ctx context.Context, userID, channelID string) (StartOutcome, error) {
	if userID == "" {
		return "", ErrInvalidUser
	}

	lk := s.locks.get(userID)
	lk.Lock()
	defer lk.Unlock()

	opts := s.opts()
	sess := models.NewMiningSession(userID, channelID, s.clk.Now(), opts.SessionDuration)

	inserted, err := s.store.PutIfAbsent(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}
	if !inserted {
		s.metrics.startsRejected.Add(1)
		log.Debug().Str("user", userID).Msg("Start rejected, session already running")
		s.send(ctx, channelID, alreadyMiningMessage())
		return OutcomeAlreadyRunning, nil
	}

	s.schedule(userID, opts.SessionDuration)
	s.metrics.sessionsStarted.Add(1)
	log.Info().
		Str("user", userID).
		Str("session", sess.ID).
		Dur("duration", opts.SessionDuration).
		Msg("Mining session started")
	s.send(ctx, channelID, startedMessage(opts.SessionDuration))
	return OutcomeStarted, nil
}

// StopSession clears the user's session bookkeeping and cancels the
// pending timer. Removal counts as cancellation: a timer that already
// escaped Stop finds no session and never pays out.
func (s *Service) StopSession(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}

	lk := s.locks.get(userID)
	lk.Lock()
	defer lk.Unlock()

	s.stopTimer(userID)
	removed, err := s.store.Remove(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if removed {
		s.metrics.sessionsStopped.Add(1)
		log.Info().Str("user", userID).Msg("Mining session stopped")
	}
	return nil
}

// OnTimerFire finalizes the user's session: credit the reward, remove
// the session, notify the user. Defensively idempotent: with no running
// session (stopped, already finalized, duplicate callback) it is a
// no-op.
func (s *Service) OnTimerFire(ctx context.Context, userID string) error {
	lk := s.locks.get(userID)
	lk.Lock()
	defer lk.Unlock()

	s.forgetTimer(userID)

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		s.metrics.staleFires.Add(1)
		log.Debug().Str("user", userID).Msg("Timer fired with no running session")
		return nil
	}

	amount := s.opts().RewardAmount
	balance, creditErr := s.ledger.Credit(ctx, sess.ID, userID, amount)
	if creditErr != nil {
		// One immediate retry. The ledger is idempotent per session
		// ID, so a half-applied first attempt cannot double-pay.
		balance, creditErr = s.ledger.Credit(ctx, sess.ID, userID, amount)
	}
	if creditErr != nil {
		s.metrics.creditFailures.Add(1)
		log.Error().
			Err(creditErr).
			Str("user", userID).
			Str("session", sess.ID).
			Int64("amount", amount).
			Msg("Ledger credit failed, finalizing session anyway")
	}

	// Credit precedes removal; removal happens regardless of how the
	// notification fares.
	if _, err := s.store.Remove(ctx, userID); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}

	if creditErr == nil {
		s.metrics.sessionsCompleted.Add(1)
		log.Info().
			Str("user", userID).
			Str("session", sess.ID).
			Int64("reward", amount).
			Int64("balance", balance).
			Msg("Mining session completed")
		s.send(ctx, sess.ChannelID, completedMessage(amount, balance))
	}
	return nil
}

// GetStatus reports whether the user is mining and since when.
func (s *Service) GetStatus(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, ErrInvalidUser
	}

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return Status{}, nil
	}
	return Status{Mining: true, StartedAt: sess.StartedAt, MaturesAt: sess.MaturesAt}, nil
}

// Balance returns the user's cumulative token balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUser
	}
	return s.ledger.BalanceOf(ctx, userID)
}

// Resume reschedules completion timers for sessions that survived a
// restart in a durable store. Overdue sessions fire immediately.
func (s *Service) Resume(ctx context.Context) error {
	sessions, err := s.store.Running(ctx)
	if err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}

	for _, sess := range sessions {
		lk := s.locks.get(sess.UserID)
		lk.Lock()
		s.schedule(sess.UserID, sess.Remaining(s.clk.Now()))
		lk.Unlock()
	}

	if len(sessions) > 0 {
		log.Info().Int("count", len(sessions)).Msg("Resumed pending mining sessions")
	}
	return nil
}

// Metrics returns a snapshot of the service counters.
func (s *Service) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Close stops all pending timers. Completions already in flight finish.
func (s *Service) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for userID, t := range s.timers {
		t.Stop()
		delete(s.timers, userID)
	}
}

// schedule registers the completion timer for userID. Callers hold the
// user lock, so at most one timer exists per running session.
func (s *Service) schedule(userID string, d time.Duration) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if t, ok := s.timers[userID]; ok {
		t.Stop()
	}
	s.timers[userID] = s.clk.AfterFunc(d, func() {
		if err := s.OnTimerFire(context.Background(), userID); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("Session completion failed")
		}
	})
}

// forgetTimer drops the bookkeeping for a timer that has already
// fired. The fire path must not call Stop: the clock invokes the
// callback while holding its own lock, and Stop re-acquires it.
func (s *Service) forgetTimer(userID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	delete(s.timers, userID)
}

// stopTimer stops and forgets the user's pending timer, if any. Only
// for callers outside the timer callback (stop commands, rescheduling,
// shutdown).
func (s *Service) stopTimer(userID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if t, ok := s.timers[userID]; ok {
		t.Stop()
		delete(s.timers, userID)
	}
}

// send delivers a notification, logging and counting failures. Delivery
// problems never propagate into session state.
func (s *Service) send(ctx context.Context, channelID, text string) {
	if channelID == "" {
		return
	}
	if err := s.notifier.Send(ctx, channelID, text); err != nil {
		s.metrics.notifyFailures.Add(1)
		log.Warn().Err(err).Str("channel", channelID).Msg("Notification delivery failed")
	}
}
