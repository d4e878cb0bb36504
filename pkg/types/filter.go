package types

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SearchFilter holds optional search facets. A zero value places no
// constraint on the search.
type SearchFilter struct {
	Task    string
	Library string
	Author  string
	Sort    string
	Limit   int
}

var titleCaser = cases.Title(language.English)

// NormalizeFacet turns a human label such as "Text Classification" into the
// registry form "text-classification". Labels meaning "any" become empty.
func NormalizeFacet(label string) string {
	label = strings.TrimSpace(label)
	lower := strings.ToLower(label)
	if lower == "" || strings.HasPrefix(lower, "all ") || lower == "all" || lower == "any" {
		return ""
	}
	return strings.Join(strings.Fields(lower), "-")
}

// FacetLabel is the inverse of NormalizeFacet for display.
func FacetLabel(facet string) string {
	return titleCaser.String(strings.ReplaceAll(facet, "-", " "))
}

func (f SearchFilter) IsEmpty() bool {
	return f == SearchFilter{}
}

// Values encodes the filter as registry query parameters.
func (f SearchFilter) Values(query string) url.Values {
	values := url.Values{}
	if query != "" {
		values.Set("search", query)
	}
	if task := NormalizeFacet(f.Task); task != "" {
		values.Set("pipeline_tag", task)
	}
	if library := NormalizeFacet(f.Library); library != "" {
		values.Set("library", library)
	}
	if f.Author != "" {
		values.Set("author", f.Author)
	}
	if f.Sort != "" {
		values.Set("sort", f.Sort)
		values.Set("direction", "-1")
	}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	return values
}
