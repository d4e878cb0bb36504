package task

import (
	"encoding/json"

	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// Outcome is the result of one task: one of SearchResult, DownloadResult,
// InferenceResult or Failure.
type Outcome interface {
	outcome()
}

type SearchResult struct {
	Query  string
	Filter types.SearchFilter
	Models []types.ModelSummary
}

type DownloadResult struct {
	ID string
	types.DownloadResult
}

type InferenceResult struct {
	ID      string
	Payload json.RawMessage
}

// Failure is terminal; a failed download carries no partial result.
type Failure struct {
	Kind    errors.ErrCode
	Message string
	// Detail holds the remote payload of inference failures.
	Detail string
}

func (SearchResult) outcome()    {}
func (DownloadResult) outcome()  {}
func (InferenceResult) outcome() {}
func (Failure) outcome()         {}

// NewFailure reduces err to one of the coarse failure kinds.
func NewFailure(err error) Failure {
	info := errors.Classify(err)
	kind := info.Code
	switch kind {
	case errors.ErrCodeAuth, errors.ErrCodeTransient, errors.ErrCodeRequest, errors.ErrCodeInference, errors.ErrCodeInternal:
	default:
		kind = errors.ErrCodeInternal
	}
	return Failure{Kind: kind, Message: info.Message, Detail: info.Detail}
}
