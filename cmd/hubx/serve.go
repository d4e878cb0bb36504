package main

import (
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"kubegems.io/hubx/cmd/hubx/model"
	"kubegems.io/hubx/pkg/registry"
	"kubegems.io/hubx/pkg/settings"
)

func NewServeCmd() *cobra.Command {
	options := registry.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve a download directory as a hub compatible mirror",
		Example: `
  hubx serve --dir /data/models --listen :8080
  hubx download acme/model --endpoint http://127.0.0.1:8080
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := model.BaseContext()
			defer cancel()

			if options.Dir == "" {
				path, _ := cmd.Flags().GetString("settings")
				current, err := settings.NewManager(path).Load()
				if err != nil {
					return err
				}
				options.Dir = current.DownloadDir
			}
			if options.Dir == "" {
				options.Dir = "."
			}

			log.SetFlags(log.LstdFlags | log.Lshortfile)
			ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
			return registry.Run(ctx, options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.Listen, "listen", options.Listen, "listen address")
	flags.StringVar(&options.Dir, "dir", options.Dir, "directory holding <owner>/<name> models, defaults to the download directory")
	flags.StringVar(&options.Token, "serve-token", options.Token, "bearer token required by the mirror")
	flags.StringVar(&options.TLS.CertFile, "tls-cert", options.TLS.CertFile, "tls cert file")
	flags.StringVar(&options.TLS.KeyFile, "tls-key", options.TLS.KeyFile, "tls key file")
	return cmd
}
