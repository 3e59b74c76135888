package acquisition

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/cesargomez89/playledger/internal/constants"
	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
	"github.com/cesargomez89/playledger/internal/metrics"
)

var ErrNotScheduled = errors.New("user has no poller")

// ActiveUserLister is used to schedule every active user at startup.
type ActiveUserLister interface {
	ListActiveUsers(ctx context.Context) ([]*domain.User, error)
}

// Scheduler owns one supervised Poller per active user.
type Scheduler struct {
	sup     *suture.Supervisor
	users   UserStore
	loop    CycleRunner
	opts    PollerOptions
	logger  *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	pollers map[int64]scheduled
}

type scheduled struct {
	token  suture.ServiceToken
	poller *Poller
}

func NewScheduler(sup *suture.Supervisor, users UserStore, loop CycleRunner, opts PollerOptions, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{
		sup:     sup,
		users:   users,
		loop:    loop,
		opts:    opts,
		logger:  log.WithComponent("scheduler"),
		timeout: constants.HTTPShutdownWindow,
		pollers: make(map[int64]scheduled),
	}
}

// Add starts polling the user. Adding an already scheduled user is a no-op.
func (s *Scheduler) Add(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pollers[userID]; ok {
		return false
	}

	p := NewPoller(userID, s.users, s.loop, s.opts, s.logger)
	s.pollers[userID] = scheduled{token: s.sup.Add(p), poller: p}
	metrics.ActivePollers.Set(float64(len(s.pollers)))
	s.logger.Info("User scheduled", "user_id", userID)
	return true
}

// Remove stops the user's poller and waits for its current cycle to end.
func (s *Scheduler) Remove(userID int64) error {
	s.mu.Lock()
	entry, ok := s.pollers[userID]
	if ok {
		delete(s.pollers, userID)
		metrics.ActivePollers.Set(float64(len(s.pollers)))
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotScheduled
	}
	s.logger.Info("User unscheduled", "user_id", userID)
	return s.sup.RemoveAndWait(entry.token, s.timeout)
}

// Active returns the scheduled user ids in ascending order.
func (s *Scheduler) Active() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.pollers))
	for id := range s.pollers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Status returns the last cycle status of a scheduled user.
func (s *Scheduler) Status(userID int64) (Status, bool) {
	s.mu.Lock()
	entry, ok := s.pollers[userID]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return entry.poller.Status(), true
}

// LoadActive schedules every user marked active in the store.
func (s *Scheduler) LoadActive(ctx context.Context, users ActiveUserLister) (int, error) {
	active, err := users.ListActiveUsers(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, u := range active {
		if s.Add(u.ID) {
			added++
		}
	}
	return added, nil
}
