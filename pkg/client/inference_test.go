package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/registry"
)

func TestInvokerRun(t *testing.T) {
	hub := newTestHub(t)
	hub.registry.Token = "hf_token"
	answers := map[string]struct {
		status int
		body   string
	}{
		"acme/classifier": {http.StatusOK, `[[{"label":"POSITIVE","score":0.99}]]`},
		"acme/plain":      {http.StatusOK, `hello there`},
		"acme/loading":    {http.StatusServiceUnavailable, `{"error":"Model acme/loading is currently loading","estimated_time":20.0}`},
	}
	hub.registry.Inference = func(ctx context.Context, id string, inputs json.RawMessage) (int, []byte) {
		answer := answers[id]
		return answer.status, []byte(answer.body)
	}
	cli := NewClient(testOptions(hub.server.URL), NewCredential("hf_token"))
	ctx := context.Background()

	result, err := cli.Inference.Run(ctx, "acme/classifier", "I like it")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(result.Payload) != answers["acme/classifier"].body {
		t.Errorf("payload = %s", result.Payload)
	}

	result, err = cli.Inference.Run(ctx, "acme/plain", "hi")
	if err != nil || string(result.Payload) != `"hello there"` {
		t.Errorf("plain payload = %v, %v", result, err)
	}

	_, err = cli.Inference.Run(ctx, "acme/loading", "hi")
	if !errors.IsErrCode(err, errors.ErrCodeInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if info := errors.Classify(err); info.Detail != answers["acme/loading"].body || info.HttpStatus != http.StatusServiceUnavailable {
		t.Errorf("error info = %+v", info)
	}
	if got := hub.faults.Count(registry.RouteInference); got != 3 {
		t.Errorf("inference requests = %d, want 3 (no retries)", got)
	}
}

func TestInvokerRunFailures(t *testing.T) {
	hub := newTestHub(t)
	hub.registry.Token = "hf_token"
	cli := NewClient(testOptions(hub.server.URL), NewCredential("wrong"))
	ctx := context.Background()

	// authentication failures surface as inference errors too
	if _, err := cli.Inference.Run(ctx, "acme/x", "hi"); !errors.IsErrCode(err, errors.ErrCodeInference) {
		t.Errorf("auth: %v", err)
	}
	hub.faults.FailNext(registry.RouteInference, 0, 1)
	cli.Inference.Credential.Set("hf_token")
	if _, err := cli.Inference.Run(ctx, "acme/x", "hi"); !errors.IsErrCode(err, errors.ErrCodeInference) {
		t.Errorf("dropped connection: %v", err)
	}
	if _, err := cli.Inference.Run(ctx, "bad id", "hi"); !errors.IsErrCode(err, errors.ErrCodeRequest) {
		t.Errorf("invalid id: %v", err)
	}
}
