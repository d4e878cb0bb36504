package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// Display is the consumer of task notifications.
type Display interface {
	OnSearchResult(models []types.ModelSummary)
	OnProgress(percent int)
	OnMessage(title, body string)
	OnInferenceResult(payload json.RawMessage)
}

// Dispatch forwards events to d until events is closed or ctx is done. When
// taskID is set it returns that task's terminal event as soon as it arrives.
func Dispatch(ctx context.Context, events <-chan Event, d Display, taskID string) (*Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil, nil
			}
			Deliver(event, d)
			if taskID != "" && event.TaskID == taskID && event.Terminal() {
				return &event, nil
			}
		}
	}
}

// Deliver renders one event on d.
func Deliver(event Event, d Display) {
	switch event.Type {
	case EventProgress:
		d.OnProgress(event.Progress)
	case EventCompleted:
		switch outcome := event.Outcome.(type) {
		case SearchResult:
			d.OnSearchResult(outcome.Models)
		case InferenceResult:
			d.OnInferenceResult(outcome.Payload)
		case DownloadResult:
			d.OnProgress(100)
			d.OnMessage("Download complete", downloadSummary(outcome))
		}
	case EventCancelled:
		body := "The task was cancelled."
		if outcome, ok := event.Outcome.(DownloadResult); ok {
			body = fmt.Sprintf("Download of %s cancelled, %d files kept in %s.", outcome.ID, len(outcome.Files), outcome.Path)
		}
		d.OnMessage("Cancelled", body)
	case EventFailed:
		failure, ok := event.Outcome.(Failure)
		if !ok {
			failure = NewFailure(event.Err)
		}
		if event.Kind == KindDownload {
			// a failed download ends at 0 even if its last progress event was dropped
			d.OnProgress(0)
		}
		d.OnMessage(FailureTitle(failure.Kind), failureBody(failure))
	}
}

func FailureTitle(kind errors.ErrCode) string {
	switch kind {
	case errors.ErrCodeAuth:
		return "Authentication failed"
	case errors.ErrCodeTransient:
		return "Registry unavailable"
	case errors.ErrCodeRequest:
		return "Request failed"
	case errors.ErrCodeInference:
		return "Inference failed"
	default:
		return "Internal error"
	}
}

func failureBody(failure Failure) string {
	if failure.Detail == "" {
		return failure.Message
	}
	return failure.Message + "\n" + failure.Detail
}

func downloadSummary(result DownloadResult) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s: %d files in %s", result.ID, len(result.Files), result.Path)
	if result.Skipped > 0 {
		fmt.Fprintf(sb, ", %d already present", result.Skipped)
	}
	if len(result.Failed) > 0 {
		fmt.Fprintf(sb, "\n%d files could not be downloaded: %s", len(result.Failed), strings.Join(result.Failed, ", "))
	}
	return sb.String()
}
