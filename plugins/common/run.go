package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Run struct {
	ID     uuid.UUID
	Job    string
	Launch time.Time

	ctx    context.Context
	logger *zap.Logger
	errors int64
}

func NewRun(job string) *Run {
	return &Run{
		ID:     uuid.New(),
		Job:    job,
		Launch: time.Now(),
	}
}

// Errors returns how many errors have been reported through Except during the run
func (r *Run) Errors() int64 {
	return atomic.LoadInt64(&r.errors)
}
