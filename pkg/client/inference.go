package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

const maxInferencePayload = 32 << 20

// Invoker runs a single inference request. Requests are never retried since
// inference may be expensive or not idempotent.
type Invoker struct {
	Client     *http.Client
	Addr       string
	Credential *Credential
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

func (v *Invoker) Run(ctx context.Context, id string, input string) (*types.InferenceResult, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("id", id)

	body, err := json.Marshal(inferenceRequest{Inputs: input})
	if err != nil {
		return nil, errors.NewInferenceError(0, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(v.Addr, "/")+"/models/"+id, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInferenceError(0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if auth := v.Credential.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	cli := v.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, errors.NewInferenceError(0, err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxInferencePayload))
	if err != nil {
		return nil, errors.NewInferenceError(resp.StatusCode, err.Error()).WithCause(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		log.Info("inference rejected", "status", resp.StatusCode)
		return nil, errors.NewInferenceError(resp.StatusCode, string(payload))
	}
	if !json.Valid(payload) {
		// pass non JSON answers through as a JSON string
		quoted, _ := json.Marshal(string(payload))
		payload = quoted
	}
	return &types.InferenceResult{Payload: json.RawMessage(payload)}, nil
}
