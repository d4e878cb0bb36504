package registry

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"kubegems.io/hubx/pkg/types"
)

const MaxBytesRead = int64(1 << 20) // 1MB

// MaxBytesReadHandler returns a Handler that runs h with its ResponseWriter and Request.Body wrapped by a MaxBytesReader.
func MaxBytesReadHandler(h http.HandlerFunc, n int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := *r
		r2.Body = http.MaxBytesReader(w, r.Body, n)
		h.ServeHTTP(w, &r2)
	}
}

func GetModelID(r *http.Request) string {
	vars := mux.Vars(r)
	return vars["owner"] + "/" + vars["name"]
}

// ParseSearchFilter reads the query parameters of the model listing.
func ParseSearchFilter(r *http.Request) (string, types.SearchFilter) {
	query := r.URL.Query()
	filter := types.SearchFilter{
		Task:    query.Get("pipeline_tag"),
		Library: query.Get("library"),
		Author:  query.Get("author"),
		Sort:    query.Get("sort"),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	return query.Get("search"), filter
}
