package game

import (
	"context"
	"errors"
)

//ErrLoopStopped is returned by Do once the loop is no longer running
var ErrLoopStopped = errors.New("session loop stopped")

type command struct {
	fn  func(*Orchestrator) error
	res chan error
}

//Loop serializes every mutation of an Orchestrator onto one goroutine. Detection producers may call Do from any
//goroutine; observers and listeners registered on the orchestrator run on the loop goroutine and must not call Do.
type Loop struct {
	o    *Orchestrator
	cmds chan command
	done chan struct{}
}

func NewLoop(o *Orchestrator, queue int) *Loop {
	return &Loop{
		o:    o,
		cmds: make(chan command, queue),
		done: make(chan struct{}),
	}
}

//Run applies commands until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-l.cmds:
			cmd.res <- cmd.fn(l.o)
		}
	}
}

//Do runs fn on the loop goroutine and waits for its result. When ctx ends first, fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func(*Orchestrator) error) error {
	cmd := command{fn: fn, res: make(chan error, 1)}

	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.res:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
