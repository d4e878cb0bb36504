package registry

import (
	"context"
	"io"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"k8s.io/utils/pointer"
	"kubegems.io/hubx/pkg/types"
)

// Content is an opened file of a model.
type Content struct {
	Name    string
	ModTime time.Time
	Content io.ReadSeekCloser
}

// Store is the model catalogue the registry serves.
type Store interface {
	Search(ctx context.Context, query string, filter types.SearchFilter) ([]types.ModelSummary, error)
	GetInfo(ctx context.Context, id string) (*types.ModelInfo, error)
	ListFiles(ctx context.Context, id string) ([]types.TreeEntry, error)
	Open(ctx context.Context, id string, path string) (*Content, error)
}

// lfsSuffixes are the extensions stored as LFS objects, which carry a sha256.
var lfsSuffixes = []string{".bin", ".safetensors", ".gguf", ".pt", ".pth", ".onnx", ".h5", ".msgpack", ".ckpt"}

func IsLFSPath(path string) bool {
	return slices.IndexFunc(lfsSuffixes, func(suffix string) bool {
		return strings.HasSuffix(path, suffix)
	}) >= 0
}

// matchSummary applies the search query and facets the way the hub does:
// query is a case insensitive substring of the id, facets match exactly.
func matchSummary(summary types.ModelSummary, query string, filter types.SearchFilter) bool {
	if query != "" && !strings.Contains(strings.ToLower(summary.ID), strings.ToLower(query)) {
		return false
	}
	if task := types.NormalizeFacet(filter.Task); task != "" && summary.PipelineTag != task {
		return false
	}
	if library := types.NormalizeFacet(filter.Library); library != "" && summary.Library != library {
		return false
	}
	if filter.Author != "" && summary.Author != filter.Author {
		return false
	}
	return true
}

func sortAndLimit(summaries []types.ModelSummary, filter types.SearchFilter) []types.ModelSummary {
	switch filter.Sort {
	case "downloads":
		slices.SortFunc(summaries, func(a, b types.ModelSummary) bool {
			return pointer.Int64Deref(a.Downloads, 0) > pointer.Int64Deref(b.Downloads, 0)
		})
	case "likes":
		slices.SortFunc(summaries, func(a, b types.ModelSummary) bool {
			return pointer.Int64Deref(a.Likes, 0) > pointer.Int64Deref(b.Likes, 0)
		})
	default:
		slices.SortFunc(summaries, types.SortSummaryID)
	}
	if filter.Limit > 0 && len(summaries) > filter.Limit {
		summaries = summaries[:filter.Limit]
	}
	return summaries
}
