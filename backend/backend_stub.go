//go:build !linux && !windows && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package backend

import (
	"github.com/momentics/aioloop/clock"
	"github.com/momentics/aioloop/errs"
)

// stubBackend backs any GOOS without a dedicated reactor, modeled on the
// teacher's reactor/reactor_stub.go: every operation fails closed with
// ENOSYS rather than silently doing nothing.
type stubBackend struct{}

func newPlatformBackend() (Backend, errs.Kind) {
	return stubBackend{}, errs.OK
}

func (stubBackend) Init() errs.Kind { return errs.ENOSYS }

func (stubBackend) Submit(ev *Event, op Op) errs.Kind { return errs.ENOSYS }

func (stubBackend) Cancel(ev *Event) errs.Kind { return errs.ENOSYS }

func (stubBackend) RunUntil(deadline *clock.Time, onNow func(clock.Time)) errs.Kind {
	return errs.ENOSYS
}

func (stubBackend) Term() errs.Kind { return errs.ENOSYS }
