package registry

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"k8s.io/utils/pointer"
	"kubegems.io/hubx/pkg/errors"
	"kubegems.io/hubx/pkg/types"
)

type memoryModel struct {
	info  types.ModelInfo
	files map[string][]byte
}

// MemoryStore keeps models in memory, mostly for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	models  map[string]*memoryModel
	modtime time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: map[string]*memoryModel{}, modtime: time.Now()}
}

// Put adds or replaces a model. Siblings are derived from files.
func (s *MemoryStore) Put(info types.ModelInfo, files map[string][]byte) {
	if info.Author == "" {
		info.Author, _, _ = strings.Cut(info.ID, "/")
	}
	names := maps.Keys(files)
	slices.Sort(names)
	info.Siblings = make([]types.Sibling, 0, len(names))
	for _, name := range names {
		info.Siblings = append(info.Siblings, types.Sibling{Name: name})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[info.ID] = &memoryModel{info: info, files: files}
}

// AddModel is a shorthand for Put with text files.
func (s *MemoryStore) AddModel(id string, files map[string]string) {
	content := make(map[string][]byte, len(files))
	for name, data := range files {
		content[name] = []byte(data)
	}
	s.Put(types.ModelInfo{ModelSummary: types.ModelSummary{ID: id}}, content)
}

func (s *MemoryStore) Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := []types.ModelSummary{}
	for _, model := range s.models {
		if matchSummary(model.info.ModelSummary, query, filter) {
			summaries = append(summaries, model.info.ModelSummary)
		}
	}
	return sortAndLimit(summaries, filter), nil
}

func (s *MemoryStore) GetInfo(ctx context.Context, id string) (*types.ModelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	model, ok := s.models[id]
	if !ok {
		return nil, errors.NewNotFoundError("model " + id)
	}
	info := model.info
	return &info, nil
}

func (s *MemoryStore) ListFiles(ctx context.Context, id string) ([]types.TreeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	model, ok := s.models[id]
	if !ok {
		return nil, errors.NewNotFoundError("model " + id)
	}
	entries := []types.TreeEntry{}
	dirs := map[string]bool{}
	for name, data := range model.files {
		parts := strings.Split(name, "/")
		for i := 1; i < len(parts); i++ {
			if dir := strings.Join(parts[:i], "/"); !dirs[dir] {
				dirs[dir] = true
				entries = append(entries, types.TreeEntry{Type: "directory", Path: dir})
			}
		}
		entries = append(entries, fileEntry(name, data))
	}
	slices.SortFunc(entries, func(a, b types.TreeEntry) bool { return a.Path < b.Path })
	return entries, nil
}

func (s *MemoryStore) Open(ctx context.Context, id string, path string) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	model, ok := s.models[id]
	if !ok {
		return nil, errors.NewNotFoundError("model " + id)
	}
	data, ok := model.files[path]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("file %s of %s", path, id))
	}
	return &Content{Name: path, ModTime: s.modtime, Content: nopCloser{bytes.NewReader(data)}}, nil
}

// fileEntry describes content the way the tree endpoint does: a git blob
// oid for every file plus the sha256 of LFS tracked ones.
func fileEntry(name string, data []byte) types.TreeEntry {
	entry := types.TreeEntry{Type: "file", Path: name, Size: pointer.Int64(int64(len(data))), OID: gitBlobOID(data)}
	if IsLFSPath(name) {
		entry.LFS = &types.LFSPointer{OID: digest.FromBytes(data).Encoded(), Size: int64(len(data))}
	}
	return entry
}

func gitBlobOID(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
