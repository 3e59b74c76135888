package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/freshness"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
	"github.com/cesargomez89/playledger/internal/store"
)

// UserStore reloads the user before each cycle so refreshed tokens are used.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

var _ UserStore = (*store.DB)(nil)

// CycleRunner is implemented by *Loop.
type CycleRunner interface {
	RunCycle(ctx context.Context, user *domain.User) (CycleReport, error)
}

type PollerOptions struct {
	Gate         *freshness.Gate
	Tick         time.Duration
	CycleTimeout time.Duration
}

// Status is a poller's view of its last cycle.
type Status struct {
	UserID        int64       `json:"user_id"`
	LastRefreshed time.Time   `json:"last_refreshed"`
	LastOutcome   string      `json:"last_outcome"`
	LastError     string      `json:"last_error,omitempty"`
	LastReport    CycleReport `json:"-"`
	Latest        time.Time   `json:"latest_play"`
}

// Poller runs one user's cycles, one at a time, whenever the user is due.
type Poller struct {
	userID  int64
	users   UserStore
	loop    CycleRunner
	gate    *freshness.Gate
	tick    time.Duration
	timeout time.Duration
	logger  *logger.Logger

	mu     sync.Mutex
	status Status
}

func NewPoller(userID int64, users UserStore, loop CycleRunner, opts PollerOptions, log *logger.Logger) *Poller {
	if opts.Gate == nil {
		opts.Gate = freshness.NewGate(constants.DefaultPollInterval)
	}
	if opts.Tick <= 0 {
		opts.Tick = constants.DefaultSchedulerTick
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = constants.DefaultCycleTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &Poller{
		userID:  userID,
		users:   users,
		loop:    loop,
		gate:    opts.Gate,
		tick:    opts.Tick,
		timeout: opts.CycleTimeout,
		logger:  log.WithComponent("poller").With("user_id", userID),
		status:  Status{UserID: userID},
	}
}

// Serve implements suture.Service. Cycle failures are logged and counted;
// they never stop the poller.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		if p.due() {
			p.RunOnce(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) String() string {
	return fmt.Sprintf("poller-user-%d", p.userID)
}

func (p *Poller) due() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gate.IsDue(p.status.LastRefreshed)
}

// RunOnce runs a single bounded cycle and marks the user refreshed, whatever
// the outcome.
func (p *Poller) RunOnce(ctx context.Context) Status {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	report, err := p.cycle(cctx)
	outcome := cycleOutcome(err)
	if ctx.Err() != nil && outcome == "timeout" {
		outcome = "cancelled"
	}
	metrics.RecordCycle(outcome, time.Since(start))

	switch outcome {
	case "ok", "inactive", "cancelled":
	case "auth_failed":
		p.logger.Warn("Skipping cycle: credential rejected", "error", err)
	default:
		p.logger.Error("Cycle failed", "outcome", outcome, "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastRefreshed = p.gate.MarkRefreshed()
	p.status.LastOutcome = outcome
	p.status.LastError = ""
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastReport = report
	if report.Latest.After(p.status.Latest) {
		p.status.Latest = report.Latest
	}
	return p.status
}

var errInactive = errors.New("user is not active")

func (p *Poller) cycle(ctx context.Context) (CycleReport, error) {
	user, err := p.users.GetUser(ctx, p.userID)
	if err != nil {
		return CycleReport{UserID: p.userID}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.Active {
		return CycleReport{UserID: p.userID}, errInactive
	}
	return p.loop.RunCycle(ctx, user)
}

func cycleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errInactive):
		return "inactive"
	case errors.Is(err, ErrUnauthorized):
		return "auth_failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "fetch_failed"
	}
}

// Status returns a copy of the poller's last cycle status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
