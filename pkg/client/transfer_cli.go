package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// CLITransferer shells out to huggingface-cli for each file. The tool keeps
// its own resume metadata under the target directory.
type CLITransferer struct {
	Path       string
	Endpoint   string
	Revision   string
	Credential *Credential
	Retry      *RetryOptions
}

func (t *CLITransferer) Transfer(ctx context.Context, id string, file types.FileRef, basedir string, cancel *CancelFlag) error {
	return retry(ctx, t.Retry, "cli transfer", func() error {
		return t.transferOnce(ctx, id, file, basedir, cancel)
	})
}

func (t *CLITransferer) transferOnce(ctx context.Context, id string, file types.FileRef, basedir string, cancel *CancelFlag) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("id", id, "file", file.Path)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cancel.Cancelled() {
					stop()
					return
				}
			}
		}
	}()

	path := t.Path
	if path == "" {
		path = "huggingface-cli"
	}
	revision := t.Revision
	if revision == "" {
		revision = DefaultRevision
	}
	args := []string{"download", id, file.Path, "--revision", revision, "--local-dir", basedir}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = os.Environ()
	if t.Endpoint != "" {
		cmd.Env = append(cmd.Env, "HF_ENDPOINT="+t.Endpoint)
	}
	if token := t.Credential.Token(); token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+token)
	}
	log.V(1).Info("exec", "cmd", path, "args", args)

	out, err := cmd.CombinedOutput()
	if cancel.Cancelled() {
		return errors.NewCancelledError()
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return errors.NewInternalError(err)
		}
		return cliError(fmt.Sprintf("%s download %s: %v", path, file.Path, err), string(out))
	}
	return nil
}

func cliError(msg, output string) error {
	output = strings.TrimSpace(output)
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") || strings.Contains(lower, "unauthorized"):
		return errors.NewAuthError(0, output)
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "connection reset") || strings.Contains(lower, " 50"):
		return errors.ErrorInfo{Code: errors.ErrCodeTransient, Message: msg, Detail: output}
	default:
		return errors.ErrorInfo{Code: errors.ErrCodeRequest, Message: msg, Detail: output}
	}
}
