package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"kubegems.io/hubx/pkg/client"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

const DefaultEventBuffer = 64

type Searcher interface {
	Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error)
	Enrich(ctx context.Context, summaries []types.ModelSummary) error
}

type Downloader interface {
	Download(ctx context.Context, id string, destDir string, onProgress func(int), cancel *client.CancelFlag) (*types.DownloadResult, error)
}

type Inferencer interface {
	Run(ctx context.Context, id string, input string) (*types.InferenceResult, error)
}

type Option func(r *Runner)

// WithDetailedSearch fills missing summary fields after every search.
func WithDetailedSearch() Option {
	return func(r *Runner) { r.detailed = true }
}

func WithEventBuffer(n int) Option {
	return func(r *Runner) { r.buffer = n }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// running is the state of the task in flight.
type running struct {
	id     string
	kind   Kind
	target string
	cancel *client.CancelFlag
}

// Runner executes one task at a time in the background. Submissions made
// while a task runs are rejected with a BUSY error.
type Runner struct {
	searcher   Searcher
	downloader Downloader
	inferencer Inferencer

	detailed bool
	buffer   int
	tracer   trace.Tracer

	ctx      context.Context
	stop     context.CancelFunc
	events   chan Event
	progress atomic.Int32

	mu      sync.Mutex
	current *running
	closed  bool
	wg      sync.WaitGroup

	// deliver serializes sends so the terminal event of a task is on the
	// channel before anything of the next task.
	deliver sync.Mutex
}

func NewRunner(ctx context.Context, searcher Searcher, downloader Downloader, inferencer Inferencer, options ...Option) *Runner {
	r := &Runner{
		searcher:   searcher,
		downloader: downloader,
		inferencer: inferencer,
		buffer:     DefaultEventBuffer,
		tracer:     otel.Tracer("kubegems.io/hubx/pkg/task"),
	}
	for _, option := range options {
		option(r)
	}
	r.ctx, r.stop = context.WithCancel(ctx)
	r.events = make(chan Event, r.buffer)
	return r
}

// NewClientRunner runs tasks against a registry client.
func NewClientRunner(ctx context.Context, cli *client.Client, options ...Option) *Runner {
	return NewRunner(ctx, cli, cli.Downloader, cli.Inference, options...)
}

// Events delivers task notifications. It is closed by Close.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Progress is the last percentage reported by the running download.
func (r *Runner) Progress() int {
	return int(r.progress.Load())
}

// Running returns the id of the task in flight, if any.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.id, true
}

// Cancel asks the running task to stop. Downloads stop between files and
// between reads; searches and inferences are reported cancelled once their
// request returns. It reports whether a task was running.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return false
	}
	logr.FromContextOrDiscard(r.ctx).Info("cancel requested", "task", r.current.id, "kind", r.current.kind)
	r.current.cancel.Cancel()
	return true
}

func (r *Runner) SubmitSearch(query string, filter types.SearchFilter) (string, error) {
	return r.submit(KindSearch, query, func(ctx context.Context, t *running) (Outcome, error) {
		models, err := r.searcher.Search(ctx, query, filter)
		if err != nil {
			return nil, err
		}
		if r.detailed && !t.cancel.Cancelled() {
			if err := r.searcher.Enrich(ctx, models); err != nil {
				logr.FromContextOrDiscard(ctx).Error(err, "enrich search results")
			}
		}
		return SearchResult{Query: query, Filter: filter, Models: models}, nil
	})
}

func (r *Runner) SubmitDownload(id string, destDir string) (string, error) {
	return r.submit(KindDownload, id, func(ctx context.Context, t *running) (Outcome, error) {
		onProgress := func(percent int) {
			r.progress.Store(int32(percent))
			r.emit(Event{TaskID: t.id, Kind: t.kind, Type: EventProgress, Progress: percent})
		}
		result, err := r.downloader.Download(ctx, id, destDir, onProgress, t.cancel)
		if result == nil {
			return nil, err
		}
		return DownloadResult{ID: id, DownloadResult: *result}, err
	})
}

func (r *Runner) SubmitInference(id string, input string) (string, error) {
	return r.submit(KindInference, id, func(ctx context.Context, t *running) (Outcome, error) {
		result, err := r.inferencer.Run(ctx, id, input)
		if err != nil {
			return nil, err
		}
		return InferenceResult{ID: id, Payload: result.Payload}, nil
	})
}

// Close cancels the running task, waits for its terminal event and closes
// the event channel.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.current != nil {
		r.current.cancel.Cancel()
	}
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
	close(r.events)
}

type taskFunc func(ctx context.Context, t *running) (Outcome, error)

func (r *Runner) submit(kind Kind, target string, fn taskFunc) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", errors.NewInternalError(fmt.Errorf("task runner is closed"))
	}
	if r.current != nil {
		return "", errors.NewBusyError(r.current.id)
	}
	t := &running{id: uuid.NewString(), kind: kind, target: target, cancel: &client.CancelFlag{}}
	r.current = t
	r.progress.Store(0)
	r.wg.Add(1)
	go r.run(t, fn)
	return t.id, nil
}

func (r *Runner) run(t *running, fn taskFunc) {
	defer r.wg.Done()

	log := logr.FromContextOrDiscard(r.ctx).WithValues("task", t.id, "kind", t.kind, "target", t.target)
	ctx, span := r.tracer.Start(logr.NewContext(r.ctx, log), "task."+string(t.kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", t.id),
		attribute.String("task.target", t.target),
	)

	log.V(1).Info("task started")
	outcome, err := r.call(ctx, t, fn)
	event := terminalEvent(t, outcome, err)

	switch event.Type {
	case EventFailed:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(err, "task failed")
	case EventCancelled:
		span.SetAttributes(attribute.Bool("task.cancelled", true))
		log.Info("task cancelled")
	default:
		span.SetStatus(codes.Ok, "")
		log.V(1).Info("task completed")
	}

	// the slot is released before the terminal event is sent, so a consumer
	// reacting to it can submit right away
	r.deliver.Lock()
	defer r.deliver.Unlock()
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	select {
	case r.events <- event:
	default:
		// buffer full, wait for the consumer unless the runner is closing
		select {
		case r.events <- event:
		case <-r.ctx.Done():
			log.Info("terminal event dropped on close")
		}
	}
}

// call runs fn, turning a panic into an INTERNAL error.
func (r *Runner) call(ctx context.Context, t *running, fn taskFunc) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			logr.FromContextOrDiscard(ctx).Info("task panicked", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			outcome, err = nil, errors.NewInternalError(fmt.Errorf("task panicked: %v", p))
		}
	}()
	return fn(ctx, t)
}

func terminalEvent(t *running, outcome Outcome, err error) Event {
	event := Event{TaskID: t.id, Kind: t.kind, Err: err}
	switch {
	case errors.IsCancelled(err):
		event.Type, event.Outcome = EventCancelled, outcome
	case err != nil:
		event.Type, event.Outcome = EventFailed, NewFailure(err)
	case t.cancel.Cancelled() && t.kind != KindDownload:
		// the request could not be interrupted, drop its answer
		event.Type, event.Err = EventCancelled, errors.NewCancelledError()
	default:
		event.Type, event.Outcome = EventCompleted, outcome
	}
	return event
}

// emit delivers a progress event without blocking the task; a slow consumer
// misses intermediate values but can read Progress.
func (r *Runner) emit(event Event) {
	r.deliver.Lock()
	defer r.deliver.Unlock()
	select {
	case r.events <- event:
	default:
	}
}
