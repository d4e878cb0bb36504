package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// Transferer retrieves the content of one file of an artifact into basedir,
// at the file's relative path. A partially written file may be left behind
// on failure or cancellation.
type Transferer interface {
	Transfer(ctx context.Context, id string, file types.FileRef, basedir string, cancel *CancelFlag) error
}

// HTTPTransferer downloads files from the registry's resolve endpoint and
// resumes partial files with range requests.
type HTTPTransferer struct {
	Remote *RegistryClient
	Client *http.Client
	Retry  *RetryOptions
}

func (t *HTTPTransferer) Transfer(ctx context.Context, id string, file types.FileRef, basedir string, cancel *CancelFlag) error {
	return retry(ctx, t.Retry, "transfer", func() error {
		return t.transferOnce(ctx, id, file, basedir, cancel)
	})
}

func (t *HTTPTransferer) transferOnce(ctx context.Context, id string, file types.FileRef, basedir string, cancel *CancelFlag) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("id", id, "file", file.Path)
	filename := filepath.Join(basedir, filepath.FromSlash(file.Path))

	var offset int64
	if fi, err := os.Stat(filename); err == nil && fi.Mode().IsRegular() && file.Size > 0 && fi.Size() < file.Size {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Remote.FileURL(id, file.Path), nil)
	if err != nil {
		return errors.NewParameterInvalidError(err.Error())
	}
	if auth := t.Remote.Credential.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("User-Agent", UserAgent)
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	cli := t.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return errors.FromTransport(err)
	}
	defer resp.Body.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if start, ok := contentRangeStart(resp.Header.Get("Content-Range")); !ok || start != offset {
			return errors.NewTransientError(fmt.Errorf("unexpected content range %q for offset %d", resp.Header.Get("Content-Range"), offset))
		}
		log.V(1).Info("resuming", "offset", offset)
		flags = os.O_WRONLY | os.O_APPEND
	case http.StatusOK:
		offset = 0
	case http.StatusRequestedRangeNotSatisfiable:
		// the partial file no longer matches the remote content, start over
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			return errors.NewInternalError(err)
		}
		return errors.NewTransientError(fmt.Errorf("range %d- not satisfiable", offset))
	default:
		return decodeAPIError(resp)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.NewInternalError(err)
	}
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return errors.NewInternalError(err)
	}
	defer f.Close()

	written, err := io.Copy(internalWriter{f}, &cancelReader{r: resp.Body, cancel: cancel})
	if err != nil {
		return errors.FromTransport(err)
	}
	if file.Size > 0 && offset+written != file.Size {
		return errors.NewTransientError(fmt.Errorf("short transfer of %s: got %d of %d bytes", file.Path, offset+written, file.Size))
	}
	return nil
}

// contentRangeStart parses "bytes <start>-<end>/<size>".
func contentRangeStart(header string) (int64, bool) {
	rest, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, false
	}
	start, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(start, 10, 64)
	return n, err == nil
}

// cancelReader stops a transfer mid-file once the flag is raised.
type cancelReader struct {
	r      io.Reader
	cancel *CancelFlag
}

func (c *cancelReader) Read(p []byte) (int, error) {
	if c.cancel.Cancelled() {
		return 0, errors.NewCancelledError()
	}
	return c.r.Read(p)
}

// internalWriter marks local write failures so they are not mistaken for
// network errors.
type internalWriter struct {
	w io.Writer
}

func (w internalWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, errors.NewInternalError(err)
	}
	return n, nil
}
