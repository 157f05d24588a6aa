// Package budget caps how many generator calls may be made per period.
// Every granted call is recorded in a persistent usage ledger before the
// generator runs, so the cap holds across restarts and concurrent requests.
package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
)

// ErrBudgetExceeded is returned when the generator quota is used up.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Ledger stores generator calls. *audit.Logger implements it.
type Ledger interface {
	RecordGeneration(ctx context.Context, at time.Time) error
	CountGenerations(ctx context.Context, since time.Time) (int64, error)
}

// Enforcer checks generator usage against a set of policies. It is safe for
// concurrent use.
type Enforcer struct {
	policies []models.BudgetPolicy
	ledger   Ledger
	now      func() time.Time
	mu       sync.Mutex
}

// New creates an Enforcer. With no policies every call is allowed.
func New(policies []models.BudgetPolicy, l Ledger) *Enforcer {
	return &Enforcer{policies: policies, ledger: l, now: time.Now}
}

// usage returns how many generator calls count against p at now.
func (e *Enforcer) usage(ctx context.Context, p models.BudgetPolicy, now time.Time) (int64, error) {
	return e.ledger.CountGenerations(ctx, periodStart(p.Period, now))
}

func (e *Enforcer) check(ctx context.Context, now time.Time) error {
	for _, p := range e.policies {
		used, err := e.usage(ctx, p, now)
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if used >= p.MaxGenerations {
			return fmt.Errorf("%w: %d of %d %s generations used", ErrBudgetExceeded, used, p.MaxGenerations, p.Period)
		}
	}
	return nil
}

// Check returns ErrBudgetExceeded once any policy has no generations left.
// It does not consume budget.
func (e *Enforcer) Check(ctx context.Context) error {
	return e.check(ctx, e.now())
}

// Allow implements selector.Gate. A granted call is recorded before Allow
// returns, so concurrent callers cannot overrun a policy.
func (e *Enforcer) Allow(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.check(ctx, now); err != nil {
		return err
	}
	if len(e.policies) == 0 {
		return nil
	}
	if err := e.ledger.RecordGeneration(ctx, now); err != nil {
		return fmt.Errorf("budget reserve: %w", err)
	}
	return nil
}

// Status reports usage for every policy in configuration order.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	now := e.now()
	out := make([]models.BudgetStatus, 0, len(e.policies))
	for _, p := range e.policies {
		used, err := e.usage(ctx, p, now)
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		out = append(out, models.BudgetStatus{
			Policy:    p,
			Used:      used,
			Remaining: max(p.MaxGenerations-used, 0),
		})
	}
	return out, nil
}

// periodStart returns the UTC start of the period containing now. Weeks
// start on Monday; unknown periods are treated as daily.
func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch period {
	case models.BudgetMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case models.BudgetWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return day
	}
}
