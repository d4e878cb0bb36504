package client

import (
	"strconv"
	"strings"

	"kubegems.io/hubx/pkg/client/units"
	"kubegems.io/hubx/pkg/types"
)

// ShowList is a table ready for display.
type ShowList struct {
	Header []any
	Items  [][]any
}

func ShowSummaries(summaries []types.ModelSummary) *ShowList {
	show := &ShowList{
		Header: []any{"Model", "Task", "Library", "Downloads", "Likes"},
		Items:  make([][]any, len(summaries)),
	}
	for i, s := range summaries {
		show.Items[i] = []any{s.ID, types.FacetLabel(s.PipelineTag), s.Library, optionalCount(s.Downloads), optionalCount(s.Likes)}
	}
	return show
}

func ShowFiles(files []types.FileRef) *ShowList {
	show := &ShowList{
		Header: []any{"Path", "Size", "SHA256"},
		Items:  make([][]any, len(files)),
	}
	for i, file := range files {
		show.Items[i] = []any{file.Path, units.HumanBytes(file.Size), shortDigest(file.SHA256)}
	}
	return show
}

func ShowInfo(info *types.ModelInfo) *ShowList {
	show := &ShowList{Header: []any{"Field", "Value"}}
	add := func(k string, v any) { show.Items = append(show.Items, []any{k, v}) }
	add("ID", info.ID)
	add("Author", info.Author)
	add("Task", types.FacetLabel(info.PipelineTag))
	add("Library", info.Library)
	add("SHA", info.SHA)
	add("Private", strconv.FormatBool(info.Private))
	add("Gated", gatedLabel(info.Gated))
	add("Downloads", optionalCount(info.Downloads))
	add("Likes", optionalCount(info.Likes))
	if info.LastModified != nil {
		add("Last Modified", info.LastModified.Format("2006-01-02 15:04:05"))
	}
	add("Tags", strings.Join(info.Tags, ","))
	add("Files", strconv.Itoa(len(info.Siblings)))
	return show
}

func optionalCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func shortDigest(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// gatedLabel renders the hub "gated" field, which is false or a mode name.
func gatedLabel(gated any) string {
	switch val := gated.(type) {
	case nil:
		return "false"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return "true"
	}
}
