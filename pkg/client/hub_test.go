package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"kubegems.io/hubx/pkg/registry"
)

type testHub struct {
	store    *registry.MemoryStore
	faults   *registry.Faults
	registry *registry.Registry
	server   *httptest.Server
}

func newTestHub(t *testing.T, middlewares ...mux.MiddlewareFunc) *testHub {
	t.Helper()
	store := registry.NewMemoryStore()
	faults := registry.NewFaults()
	reg := registry.NewRegistry(store)
	reg.Middlewares = append([]mux.MiddlewareFunc{faults.Middleware}, middlewares...)
	srv := httptest.NewServer(reg.Handler())
	t.Cleanup(srv.Close)
	return &testHub{store: store, faults: faults, registry: reg, server: srv}
}

func testOptions(addr string) *Options {
	opts := DefaultOptions()
	opts.Endpoint = addr
	opts.InferenceEndpoint = addr
	opts.Retry.BackoffBase = time.Millisecond
	opts.Download.CheckDiskSpace = false
	return opts
}
