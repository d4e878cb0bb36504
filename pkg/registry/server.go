package registry

import (
	"context"
	"net"
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/gorilla/handlers"
)

type Options struct {
	Listen string
	// Dir holds models as <owner>/<name>/..., usually a download directory.
	Dir   string
	Token string
	TLS   *TLS
}

type TLS struct {
	CertFile string
	KeyFile  string
}

func DefaultOptions() *Options {
	return &Options{
		Listen: ":8080",
		TLS:    &TLS{},
	}
}

// Run serves opts.Dir as a read only registry mirror until ctx is done.
func Run(ctx context.Context, opts *Options) error {
	log := logr.FromContextOrDiscard(ctx)
	store, err := NewDirStore(opts.Dir)
	if err != nil {
		return err
	}
	registry := NewRegistry(store)
	registry.Token = opts.Token

	handler := handlers.CombinedLoggingHandler(os.Stdout, registry.Handler())
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)

	server := http.Server{
		Addr:    opts.Listen,
		Handler: handler,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()
	var serveErr error
	if opts.TLS != nil && opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		log.Info("registry listening", "https", opts.Listen, "dir", opts.Dir)
		serveErr = server.ListenAndServeTLS(opts.TLS.CertFile, opts.TLS.KeyFile)
	} else {
		log.Info("registry listening", "http", opts.Listen, "dir", opts.Dir)
		serveErr = server.ListenAndServe()
	}
	if serveErr == http.ErrServerClosed {
		return nil
	}
	return serveErr
}
