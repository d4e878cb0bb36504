package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
	"github.com/shirou/gopsutil/v3/disk"
	"kubegems.io/hubx/pkg/client/progress"
	"kubegems.io/hubx/pkg/client/units"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// Registry is the part of RegistryClient a download needs.
type Registry interface {
	GetInfo(ctx context.Context, id string) (*types.ModelInfo, error)
	ListFiles(ctx context.Context, id string) ([]types.FileRef, error)
}

// Downloader retrieves every file of an artifact, one file at a time.
type Downloader struct {
	Registry       Registry
	Transfer       Transferer
	Policy         FailurePolicy
	CheckDiskSpace bool

	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// Download fetches all files of id into destDir/<owner>/<name>. onProgress
// receives non-decreasing percentages ending at 100, or 0 when the download
// fails. When cancel is raised the files retrieved so far are returned with
// a CANCELLED error.
func (d *Downloader) Download(ctx context.Context, id string, destDir string, onProgress func(int), cancel *CancelFlag) (*types.DownloadResult, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("id", id)
	tracker := progress.NewTracker(onProgress)
	fail := func(err error) (*types.DownloadResult, error) {
		tracker.Fail()
		return nil, err
	}

	if err := ValidateID(id); err != nil {
		return fail(err)
	}
	if destDir == "" {
		return fail(errors.NewParameterInvalidError("destination directory is required"))
	}

	// pre-flight, nothing is written before the artifact is known to exist
	if _, err := d.Registry.GetInfo(ctx, id); err != nil {
		return fail(err)
	}
	basedir := filepath.Join(destDir, filepath.FromSlash(id))
	if cancelled(ctx, cancel) {
		return &types.DownloadResult{Path: basedir, Files: []string{}}, errors.NewCancelledError()
	}
	if fi, err := os.Stat(basedir); err == nil && !fi.IsDir() {
		return fail(errors.NewInternalError(fmt.Errorf("%s is not a directory", basedir)))
	}
	if err := os.MkdirAll(basedir, 0o755); err != nil {
		return fail(errors.NewInternalError(fmt.Errorf("create directory %s: %w", basedir, err)))
	}

	files, err := d.Registry.ListFiles(ctx, id)
	if err != nil {
		return fail(err)
	}
	if len(files) == 0 {
		return fail(errors.NewNotFoundError("files of model " + id))
	}
	if d.CheckDiskSpace {
		if err := d.checkDiskSpace(ctx, basedir, files); err != nil {
			return fail(err)
		}
	}

	result := &types.DownloadResult{Path: basedir, Files: []string{}}
	var lasterr error
	for i, file := range files {
		if cancelled(ctx, cancel) {
			log.Info("download cancelled", "completed", i, "total", len(files))
			return result, errors.NewCancelledError()
		}
		filename, err := localPath(basedir, file.Path)
		if err == nil {
			err = d.pullFile(ctx, id, file, basedir, filename, result, cancel)
		}
		switch {
		case errors.IsErrCode(err, errors.ErrCodeCancelled):
			log.Info("download cancelled mid-file", "file", file.Path)
			return result, err
		case err != nil:
			log.Error(err, "file transfer failed", "file", file.Path)
			if d.Policy == AbortOnError {
				return fail(err)
			}
			lasterr = err
			result.Failed = append(result.Failed, file.Path)
		}
		// 100 is held back until the outcome is known
		if i+1 < len(files) {
			tracker.Set(progress.Percent(int64(i+1), int64(len(files))))
		}
	}

	if len(result.Files) == 0 {
		info := errors.ErrorInfo{
			Code:    errors.CodeOf(lasterr),
			Message: fmt.Sprintf("none of the %d files of %s could be downloaded: %v", len(files), id, lasterr),
		}
		return fail(info.WithCause(lasterr))
	}
	tracker.Set(100)
	log.Info("download finished", "path", basedir, "files", len(result.Files), "skipped", result.Skipped, "failed", len(result.Failed))
	return result, nil
}

func (d *Downloader) pullFile(ctx context.Context, id string, file types.FileRef, basedir, filename string, result *types.DownloadResult, cancel *CancelFlag) error {
	complete, err := checkLocalFile(filename, file)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if complete {
		logr.FromContextOrDiscard(ctx).V(1).Info("already exists", "file", file.Path)
		result.Files = append(result.Files, filename)
		result.Skipped++
		return nil
	}
	if err := d.Transfer.Transfer(ctx, id, file, basedir, cancel); err != nil {
		return err
	}
	if file.SHA256 != "" {
		ok, err := matchDigest(filename, file.SHA256)
		if err != nil {
			return errors.NewInternalError(err)
		}
		if !ok {
			_ = os.Remove(filename)
			return errors.NewRequestError(0, fmt.Sprintf("digest mismatch for %s", file.Path))
		}
	}
	result.Files = append(result.Files, filename)
	return nil
}

func (d *Downloader) checkDiskSpace(ctx context.Context, basedir string, files []types.FileRef) error {
	var need int64
	for _, file := range files {
		if file.Size <= 0 {
			continue
		}
		need += file.Size
		if filename, err := localPath(basedir, file.Path); err == nil {
			if fi, err := os.Stat(filename); err == nil && fi.Size() <= file.Size {
				need -= fi.Size()
			}
		}
	}
	usage := d.usage
	if usage == nil {
		usage = disk.UsageWithContext
	}
	stat, err := usage(ctx, basedir)
	if err != nil {
		logr.FromContextOrDiscard(ctx).Info("skip disk space check", "error", err.Error())
		return nil
	}
	if need > 0 && stat.Free < uint64(need) {
		return errors.NewInternalError(fmt.Errorf("insufficient disk space in %s: need %s, %s free",
			basedir, units.HumanSize(float64(need)), units.HumanSize(float64(stat.Free))))
	}
	return nil
}

func cancelled(ctx context.Context, cancel *CancelFlag) bool {
	return cancel.Cancelled() || ctx.Err() != nil
}

// localPath joins a repository path onto basedir, refusing paths that would
// land outside of it.
func localPath(basedir, repopath string) (string, error) {
	if repopath == "" || filepath.IsAbs(repopath) || strings.HasPrefix(repopath, "/") {
		return "", errors.NewParameterInvalidError(fmt.Sprintf("invalid file path %q", repopath))
	}
	filename := filepath.Join(basedir, filepath.FromSlash(repopath))
	rel, err := filepath.Rel(basedir, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", errors.NewParameterInvalidError(fmt.Sprintf("file path %q escapes the model directory", repopath))
	}
	return filename, nil
}

// checkLocalFile reports whether filename already holds the complete content
// of file. Files of unknown size are never considered complete.
func checkLocalFile(filename string, file types.FileRef) (bool, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !fi.Mode().IsRegular() || file.Size < 0 || fi.Size() != file.Size {
		return false, nil
	}
	if file.SHA256 == "" {
		return true, nil
	}
	return matchDigest(filename, file.SHA256)
}

func matchDigest(filename string, sha256hex string) (bool, error) {
	f, err := os.Open(filename)
	if err != nil {
		return false, err
	}
	defer f.Close()
	got, err := digest.FromReader(f)
	if err != nil {
		return false, err
	}
	return got == digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(sha256hex)), nil
}
