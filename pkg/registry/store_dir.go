package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"
	"k8s.io/utils/pointer"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

// DirStore serves models laid out as <root>/<owner>/<name>/..., the layout
// the downloader writes, so a download directory can be mirrored as is.
type DirStore struct {
	Root string
}

func NewDirStore(root string) (*DirStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !fi.IsDir() {
		return nil, errors.NewInternalError(fmt.Errorf("%s is not a directory", root))
	}
	return &DirStore{Root: root}, nil
}

func (s *DirStore) Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error) {
	owners, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	summaries := []types.ModelSummary{}
	for _, owner := range owners {
		if !owner.IsDir() || strings.HasPrefix(owner.Name(), ".") {
			continue
		}
		names, err := os.ReadDir(filepath.Join(s.Root, owner.Name()))
		if err != nil {
			logr.FromContextOrDiscard(ctx).Info("skip owner", "owner", owner.Name(), "error", err.Error())
			continue
		}
		for _, name := range names {
			if !name.IsDir() || strings.HasPrefix(name.Name(), ".") {
				continue
			}
			summary := types.ModelSummary{ID: owner.Name() + "/" + name.Name(), Author: owner.Name()}
			if matchSummary(summary, query, filter) {
				summaries = append(summaries, summary)
			}
		}
	}
	return sortAndLimit(summaries, filter), nil
}

func (s *DirStore) GetInfo(ctx context.Context, id string) (*types.ModelInfo, error) {
	dir, err := s.modelDir(id)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("model " + id)
		}
		return nil, errors.NewInternalError(err)
	}
	owner, _, _ := strings.Cut(id, "/")
	modtime := fi.ModTime()
	info := &types.ModelInfo{
		ModelSummary: types.ModelSummary{ID: id, Author: owner},
		LastModified: &modtime,
	}
	err = s.walk(dir, func(rel string, d fs.DirEntry) error {
		if !d.IsDir() {
			info.Siblings = append(info.Siblings, types.Sibling{Name: rel})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *DirStore) ListFiles(ctx context.Context, id string) ([]types.TreeEntry, error) {
	dir, err := s.modelDir(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("model " + id)
		}
		return nil, errors.NewInternalError(err)
	}
	entries := []types.TreeEntry{}
	err = s.walk(dir, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			entries = append(entries, types.TreeEntry{Type: "directory", Path: rel})
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		entry := types.TreeEntry{Type: "file", Path: rel, Size: pointer.Int64(fi.Size())}
		if IsLFSPath(rel) {
			dgst, err := fileDigest(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			entry.LFS = &types.LFSPointer{OID: dgst.Encoded(), Size: fi.Size()}
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b types.TreeEntry) bool { return a.Path < b.Path })
	return entries, nil
}

func (s *DirStore) Open(ctx context.Context, id string, path string) (*Content, error) {
	dir, err := s.modelDir(id)
	if err != nil {
		return nil, err
	}
	filename := filepath.Join(dir, filepath.FromSlash(path))
	if rel, err := filepath.Rel(dir, filename); err != nil || strings.HasPrefix(rel, "..") {
		return nil, errors.NewParameterInvalidError(fmt.Sprintf("invalid file path %q", path))
	}
	// hidden entries are never listed, so they are not served either
	if isHiddenPath(path) {
		return nil, errors.NewNotFoundError(fmt.Sprintf("file %s of %s", path, id))
	}
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("file %s of %s", path, id))
		}
		return nil, errors.NewInternalError(err)
	}
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		f.Close()
		return nil, errors.NewNotFoundError(fmt.Sprintf("file %s of %s", path, id))
	}
	return &Content{Name: fi.Name(), ModTime: fi.ModTime(), Content: f}, nil
}

func (s *DirStore) modelDir(id string) (string, error) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") || strings.Contains(id, "..") {
		return "", errors.NewParameterInvalidError("invalid model id " + id)
	}
	return filepath.Join(s.Root, owner, name), nil
}

func isHiddenPath(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// walk visits everything under dir except hidden entries, with slash
// separated paths relative to dir.
func (s *DirStore) walk(dir string, fn func(rel string, d fs.DirEntry) error) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), d)
	})
	if err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func fileDigest(filename string) (digest.Digest, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.FromReader(f)
}
