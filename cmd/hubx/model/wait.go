package model

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"kubegems.io/hubx/pkg/task"
)

// ReportedError is an error the display has already shown to the user.
type ReportedError struct {
	Err error
}

func (e ReportedError) Error() string {
	return e.Err.Error()
}

func (e ReportedError) Unwrap() error {
	return e.Err
}

// Wait forwards runner events to the display until task id ends. Cancelling
// ctx, as an interrupt does, asks the task to stop and still waits for its
// terminal event.
func (s *Session) Wait(ctx context.Context, id string) (*task.Event, error) {
	var event *task.Event
	done := make(chan struct{})
	eg := &errgroup.Group{}
	eg.Go(func() error {
		defer close(done)
		var err error
		event, err = task.Dispatch(context.WithoutCancel(ctx), s.Runner.Events(), s.Display, id)
		return err
	})
	eg.Go(func() error {
		select {
		case <-ctx.Done():
			s.Runner.Cancel()
		case <-done:
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("task runner closed before task %s ended", id)
	}
	switch event.Type {
	case task.EventFailed, task.EventCancelled:
		return event, ReportedError{Err: event.Err}
	}
	return event, nil
}
