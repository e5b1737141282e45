package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository"
)

// SafetyConfig holds the supervisor thresholds.
type SafetyConfig struct {
	BootLoopThreshold int
	BootWindow        time.Duration
	StableAfter       time.Duration
	WatchdogTimeout   time.Duration
}

func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		BootLoopThreshold: 5,
		BootWindow:        5 * time.Minute,
		StableAfter:       10 * time.Minute,
		WatchdogTimeout:   30 * time.Second,
	}
}

// SafetyService detects boot loops and watchdog resets and gates normal
// operation behind a safe-mode override. Its state is persisted and loaded
// before any other subsystem initializes.
type SafetyService struct {
	mu       sync.Mutex
	repo     repository.SafetyRepo
	events   repository.EventRepo
	cfg      SafetyConfig
	state    models.SafetyState
	bootedAt time.Time
	stable   bool
	lastFeed time.Time
}

func NewSafetyService(repo repository.SafetyRepo, events repository.EventRepo, cfg SafetyConfig) *SafetyService {
	return &SafetyService{repo: repo, events: events, cfg: cfg}
}

// Boot loads the persisted state, accounts this boot against the rolling
// window and decides whether to force safe mode. Must run before the control
// loop or any command surface starts.
func (s *SafetyService) Boot(ctx context.Context) error {
	st, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load safety state: %w", err)
	}
	now := time.Now().UTC()
	if st.ID == 0 {
		st = models.SafetyState{ID: 1, Reason: models.ReasonNone, WatchdogEnabled: true}
	}

	watchdogFired := st.WatchdogDirty

	// Rolling window: boots spaced further apart than the window restart
	// the count.
	if !st.LastBootAt.IsZero() && now.Sub(st.LastBootAt) > s.cfg.BootWindow {
		st.BootCount = 0
	}
	st.BootCount++
	st.LastBootAt = now

	if watchdogFired && !st.SafeMode {
		st.SafeMode = true
		st.Reason = models.ReasonWatchdog
	}
	if st.BootCount >= s.cfg.BootLoopThreshold && !st.SafeMode {
		st.SafeMode = true
		st.Reason = models.ReasonBootLoop
	}

	// Armed for this run; cleared only by a clean shutdown.
	st.WatchdogDirty = true
	st.UpdatedAt = now

	if err := s.repo.Save(ctx, st); err != nil {
		return fmt.Errorf("save safety state: %w", err)
	}

	s.mu.Lock()
	s.state = st
	s.bootedAt = now
	s.stable = false
	s.lastFeed = now
	s.mu.Unlock()

	s.appendEvent(ctx, models.EventBoot,
		fmt.Sprintf("boot %d (watchdog fired: %v)", st.BootCount, watchdogFired),
		map[string]any{"boot_count": st.BootCount, "watchdog_fired": watchdogFired})
	if st.SafeMode {
		s.appendEvent(ctx, models.EventSafeMode,
			"safe mode entered at boot: "+string(st.Reason),
			map[string]any{"reason": st.Reason})
	}
	return nil
}

// Feed is the liveness heartbeat from the control loop.
func (s *SafetyService) Feed(now time.Time) {
	s.mu.Lock()
	s.lastFeed = now
	s.state.LastFeedAt = now
	s.mu.Unlock()
}

// WatchdogExpired reports whether the loop has missed its heartbeat past the
// configured timeout. Disabled watchdogs never expire.
func (s *SafetyService) WatchdogExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.WatchdogEnabled || s.lastFeed.IsZero() {
		return false
	}
	return now.Sub(s.lastFeed) > s.cfg.WatchdogTimeout
}

// MarkStable zeroes the boot counter. Called explicitly by the top-level
// loop once the process has run continuously past the stability duration.
func (s *SafetyService) MarkStable(ctx context.Context) error {
	now := time.Now().UTC()
	s.mu.Lock()
	s.state.BootCount = 0
	s.state.StableMarkedAt = now
	s.state.UpdatedAt = now
	s.stable = true
	st := s.state
	s.mu.Unlock()
	return s.repo.Save(ctx, st)
}

// MarkStableIfDue calls MarkStable once the stability duration has elapsed
// since boot. Returns true when the mark happened on this call.
func (s *SafetyService) MarkStableIfDue(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	due := !s.stable && !s.bootedAt.IsZero() && now.Sub(s.bootedAt) >= s.cfg.StableAfter
	s.mu.Unlock()
	if !due {
		return false
	}
	if err := s.MarkStable(ctx); err != nil {
		return false
	}
	return true
}

// RequestSafeMode enters safe mode with the given reason, persists it so it
// also holds across the next boot, and logs the entry.
func (s *SafetyService) RequestSafeMode(ctx context.Context, reason models.SafeModeReason) error {
	if reason == models.ReasonNone {
		reason = models.ReasonUserRequested
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.state.SafeMode = true
	s.state.Reason = reason
	s.state.UpdatedAt = now
	st := s.state
	s.mu.Unlock()
	if err := s.repo.Save(ctx, st); err != nil {
		return err
	}
	s.appendEvent(ctx, models.EventSafeMode, "safe mode entered: "+string(reason),
		map[string]any{"reason": reason})
	return nil
}

// ClearSafeMode is the explicit operator exit: clears the reason, resets the
// boot counter and re-arms the watchdog.
func (s *SafetyService) ClearSafeMode(ctx context.Context) error {
	now := time.Now().UTC()
	s.mu.Lock()
	s.state.SafeMode = false
	s.state.Reason = models.ReasonNone
	s.state.BootCount = 0
	s.state.WatchdogEnabled = true
	s.state.UpdatedAt = now
	s.lastFeed = now
	st := s.state
	s.mu.Unlock()
	if err := s.repo.Save(ctx, st); err != nil {
		return err
	}
	s.appendEvent(ctx, models.EventSafeModeClear, "safe mode cleared by operator", nil)
	return nil
}

// Shutdown records a clean exit so the next boot does not count this run as
// a watchdog reset.
func (s *SafetyService) Shutdown(ctx context.Context) error {
	now := time.Now().UTC()
	s.mu.Lock()
	s.state.WatchdogDirty = false
	s.state.UpdatedAt = now
	st := s.state
	s.mu.Unlock()
	return s.repo.Save(ctx, st)
}

// InSafeMode reports the gate the loop checks every tick.
func (s *SafetyService) InSafeMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SafeMode
}

// Status returns the read-only safety snapshot.
func (s *SafetyService) Status() models.SafetyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SafetyStatus{
		SafeMode:  s.state.SafeMode,
		Reason:    s.state.Reason,
		BootCount: s.state.BootCount,
		Watchdog:  s.state.WatchdogEnabled,
	}
}

func (s *SafetyService) appendEvent(ctx context.Context, typ, desc string, meta any) {
	if s.events == nil {
		return
	}
	_ = s.events.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
}
