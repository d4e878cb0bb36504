package types

import (
	"encoding/json"
	"strings"
	"time"

	"k8s.io/utils/pointer"
)

// ModelSummary is one entry of a search result. Display fields are optional
// and may only be filled after a separate info call.
type ModelSummary struct {
	ID          string   `json:"id"`
	Author      string   `json:"author,omitempty"`
	PipelineTag string   `json:"pipeline_tag,omitempty"`
	Library     string   `json:"library_name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   *int64   `json:"downloads,omitempty"`
	Likes       *int64   `json:"likes,omitempty"`
}

func SortSummaryID(a, b ModelSummary) bool {
	return strings.Compare(strings.ToLower(a.ID), strings.ToLower(b.ID)) < 0
}

type ModelInfo struct {
	ModelSummary

	SHA          string         `json:"sha,omitempty"`
	Private      bool           `json:"private"`
	Gated        any            `json:"gated,omitempty"`
	Disabled     *bool          `json:"disabled,omitempty"`
	LastModified *time.Time     `json:"lastModified,omitempty"`
	Siblings     []Sibling      `json:"siblings,omitempty"`
	CardData     map[string]any `json:"cardData,omitempty"`
}

type Sibling struct {
	Name string `json:"rfilename"`
}

// FileRef is a file of an artifact as listed by the registry tree endpoint.
type FileRef struct {
	Path string `json:"path"`
	// Size is -1 when the registry did not report it.
	Size int64 `json:"size"`
	// SHA256 is the hex digest of LFS content, empty for regular git files.
	SHA256 string `json:"sha256,omitempty"`
}

func SortFileRefPath(a, b FileRef) bool {
	return strings.Compare(a.Path, b.Path) < 0
}

// TreeEntry is the wire shape of one element returned by the tree endpoint.
type TreeEntry struct {
	Type string      `json:"type"`
	Path string      `json:"path"`
	Size *int64      `json:"size,omitempty"`
	OID  string      `json:"oid,omitempty"`
	LFS  *LFSPointer `json:"lfs,omitempty"`
}

type LFSPointer struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

func (e TreeEntry) FileRef() FileRef {
	ref := FileRef{Path: e.Path, Size: pointer.Int64Deref(e.Size, -1)}
	if e.LFS != nil {
		ref.SHA256 = e.LFS.OID
		if e.LFS.Size > 0 {
			ref.Size = e.LFS.Size
		}
	}
	return ref
}

type Account struct {
	Name     string `json:"name"`
	Fullname string `json:"fullname,omitempty"`
	Type     string `json:"type,omitempty"`
}

type DownloadResult struct {
	// Path is the local directory holding the artifact.
	Path string `json:"path"`
	// Files lists the local paths retrieved or found complete, in listing order.
	Files []string `json:"files"`
	// Skipped counts files that were already complete on disk.
	Skipped int `json:"skipped"`
	// Failed lists the repository paths that could not be retrieved.
	Failed []string `json:"failed,omitempty"`
}

// InferenceResult carries the remote payload unmodified.
type InferenceResult struct {
	Payload json.RawMessage `json:"payload"`
}
