package registry

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"kubegems.io/hubx/pkg/errors"
)

type fault struct {
	status   int
	truncate int64
	times    int
}

// Faults counts requests per route and injects failures into them. Keys are
// route names, and for RouteResolve also "resolve:<path>".
type Faults struct {
	mu     sync.Mutex
	counts map[string]int
	faults map[string][]*fault
}

func NewFaults() *Faults {
	return &Faults{counts: map[string]int{}, faults: map[string][]*fault{}}
}

// FailNext answers the next n requests on key with status. Status 0 drops
// the connection without a response.
func (f *Faults) FailNext(key string, status int, n int) {
	f.add(key, &fault{status: status, times: n})
}

// TruncateNext cuts the next n responses on key after size body bytes.
func (f *Faults) TruncateNext(key string, size int64, n int) {
	f.add(key, &fault{truncate: size, times: n})
}

func (f *Faults) add(key string, ft *fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[key] = append(f.faults[key], ft)
}

func (f *Faults) Count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = map[string]int{}
	f.faults = map[string][]*fault{}
}

func (f *Faults) take(keys []string) *fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		f.counts[key]++
	}
	for _, key := range keys {
		queue := f.faults[key]
		if len(queue) == 0 {
			continue
		}
		ft := queue[0]
		if ft.times--; ft.times <= 0 {
			f.faults[key] = queue[1:]
		}
		return ft
	}
	return nil
}

func (f *Faults) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var keys []string
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			keys = append(keys, route.GetName())
			if route.GetName() == RouteResolve {
				keys = append([]string{RouteResolve + ":" + mux.Vars(r)["path"]}, keys...)
			}
		}
		ft := f.take(keys)
		switch {
		case ft == nil:
			next.ServeHTTP(w, r)
		case ft.truncate > 0:
			next.ServeHTTP(&truncateWriter{ResponseWriter: w, remain: ft.truncate}, r)
		case ft.status == 0:
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			ResponseError(w, errors.FromStatus(http.StatusBadGateway, "connection dropped"))
		default:
			ResponseError(w, errors.FromStatus(ft.status, fmt.Sprintf("injected failure %d", ft.status)))
		}
	})
}

// truncateWriter stops writing the body after remain bytes; the server then
// closes the connection since the announced length was not reached.
type truncateWriter struct {
	http.ResponseWriter
	remain int64
}

func (t *truncateWriter) Write(p []byte) (int, error) {
	if t.remain <= 0 {
		return 0, fmt.Errorf("response truncated")
	}
	if int64(len(p)) > t.remain {
		p = p[:t.remain]
	}
	n, err := t.ResponseWriter.Write(p)
	t.remain -= int64(n)
	return n, err
}
