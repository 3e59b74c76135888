package tasks

import (
	"context"
	"errors"

	"github.com/cesargomez89/playledger/internal/domain"
	"github.com/cesargomez89/playledger/internal/logger"
)

var ErrUnknownJobType = errors.New("unknown job type")

type Handler interface {
	Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.Job, log *logger.Logger) error

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	return f(ctx, job, log)
}

type Dispatcher struct {
	handlers map[domain.JobType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.JobType]Handler),
	}
}

func (d *Dispatcher) Register(jobType domain.JobType, handler Handler) {
	d.handlers[jobType] = handler
}

func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	handler, ok := d.handlers[job.Type]
	if !ok {
		return ErrUnknownJobType
	}
	return handler.Handle(ctx, job, log)
}
