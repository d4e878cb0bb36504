package client

import (
	"fmt"
	"time"
)

const (
	DefaultEndpoint          = "https://huggingface.co"
	DefaultInferenceEndpoint = "https://api-inference.huggingface.co"
	DefaultRevision          = "main"
	DefaultMaxAttempts       = 3
	DefaultBackoffBase       = 2 * time.Second
	DefaultTimeout           = 30 * time.Second
	DefaultEnrichConcurrency = 4
)

// FailurePolicy decides what a single failed file does to a download.
type FailurePolicy string

const (
	// SkipFailed logs the failed file and continues with the rest.
	SkipFailed FailurePolicy = "skip"
	// AbortOnError fails the whole download on the first failed file.
	AbortOnError FailurePolicy = "abort"
)

func (p FailurePolicy) Validate() error {
	switch p {
	case SkipFailed, AbortOnError:
		return nil
	default:
		return fmt.Errorf("unknown failure policy %q, expected %q or %q", p, SkipFailed, AbortOnError)
	}
}

type Options struct {
	Endpoint          string
	InferenceEndpoint string
	Revision          string
	Timeout           time.Duration
	Retry             *RetryOptions
	Download          *DownloadOptions
}

type RetryOptions struct {
	MaxAttempts int
	BackoffBase time.Duration
}

type DownloadOptions struct {
	Policy FailurePolicy
	// Transport selects the transfer primitive: "http" or "cli".
	Transport string
	// CLIPath is the huggingface-cli executable used by the cli transport.
	CLIPath string
	// CheckDiskSpace enables the free-space check before transferring.
	CheckDiskSpace bool
}

func DefaultOptions() *Options {
	return &Options{
		Endpoint:          DefaultEndpoint,
		InferenceEndpoint: DefaultInferenceEndpoint,
		Revision:          DefaultRevision,
		Timeout:           DefaultTimeout,
		Retry: &RetryOptions{
			MaxAttempts: DefaultMaxAttempts,
			BackoffBase: DefaultBackoffBase,
		},
		Download: &DownloadOptions{
			Policy:         SkipFailed,
			Transport:      "http",
			CLIPath:        "huggingface-cli",
			CheckDiskSpace: true,
		},
	}
}
