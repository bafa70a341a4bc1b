package ruleset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"compass/internal/config"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/pkg/circuitbreaker"
	"compass/pkg/metrics"
)

var (
	ErrNotLoaded = errors.New("rule snapshot not loaded")
	ErrStale     = errors.New("rule snapshot is stale")
)

// staleAfter is how many missed reload intervals make the snapshot stale.
const staleAfter = 3

type Loader interface {
	LoadRules(ctx context.Context) ([]rules.Rule, error)
}

// Store owns the current rule snapshot of one service. Readers take the
// snapshot pointer and evaluate against it without further locking; a reload
// swaps the pointer.
type Store struct {
	loader     Loader
	reload     config.ReloadConfig
	cb         *circuitbreaker.Wrapper
	categories []rules.Category
	logger     logger.Logger

	mu       sync.RWMutex
	snap     *rules.Snapshot
	loadedAt time.Time
	now      func() time.Time
}

func NewStore(loader Loader, reload config.ReloadConfig, cb *circuitbreaker.Wrapper, log logger.Logger, categories ...rules.Category) *Store {
	return &Store{
		loader:     loader,
		reload:     reload,
		cb:         cb,
		categories: categories,
		logger:     log,
		now:        time.Now,
	}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *rules.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Ready fails until a snapshot has been loaded, and again once reloads have
// failed for staleAfter consecutive intervals.
func (s *Store) Ready(context.Context) error {
	if s.Snapshot() == nil {
		return ErrNotLoaded
	}
	if s.reload.IntervalSeconds <= 0 {
		return nil
	}
	limit := staleAfter * time.Duration(s.reload.IntervalSeconds) * time.Second
	if age := s.now().Sub(s.LoadedAt()); age > limit {
		return fmt.Errorf("%w: last load %s ago", ErrStale, age.Round(time.Second))
	}
	return nil
}

func (s *Store) ReloadRules(ctx context.Context, skipJitter ...bool) error {
	shouldSkipJitter := len(skipJitter) > 0 && skipJitter[0]

	if err := s.applyJitter(ctx, shouldSkipJitter); err != nil {
		return err
	}

	loaded, err := circuitbreaker.Do(ctx, s.cb, func() ([]rules.Rule, error) {
		return s.loader.LoadRules(ctx)
	})
	if err != nil {
		return err
	}

	s.update(ctx, s.keepWellFormed(ctx, loaded))
	return nil
}

func (s *Store) applyJitter(ctx context.Context, skipJitter bool) error {
	if skipJitter || s.reload.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.reload.JitterMaxMilliseconds)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Reload scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// keepWellFormed drops rules whose payload does not match their category so
// one bad row cannot block the rest of the table.
func (s *Store) keepWellFormed(ctx context.Context, loaded []rules.Rule) []rules.Rule {
	out := loaded[:0:0]
	for _, r := range loaded {
		if err := r.CheckShape(); err != nil {
			s.logger.WarnwCtx(ctx, "Skipping malformed rule",
				"rule_id", r.ID,
				"error", err,
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) update(ctx context.Context, loaded []rules.Rule) {
	snap := rules.NewSnapshot(loaded)

	s.mu.Lock()
	s.snap = snap
	s.loadedAt = s.now()
	s.mu.Unlock()

	for _, cat := range s.categories {
		metrics.SetActiveRules(string(cat), snap.ActiveCount(cat))
	}
	s.logger.InfowCtx(ctx, "Successfully reloaded rules",
		"rules_count", snap.Len(),
	)
}

// StartReloader loads immediately, then on every reload interval until ctx
// is done. Failed reloads keep the previous snapshot.
func (s *Store) StartReloader(ctx context.Context) error {
	if err := s.ReloadRules(ctx, true); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to load rules",
			"error", err,
		)
	}

	interval := time.Duration(s.reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadRules(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload rules",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
