package model

import (
	"errors"

	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/client"
)

func NewDownloadCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "download <owner/name[@revision]> [dir]",
		Aliases: []string{"pull"},
		Short:   "download every file of a model into <dir>/<owner>/<name>",
		Example: `
  hubx download acme/model
  hubx download acme/model@v1.0 /data/models
  hubx download https://huggingface.co/acme/model/tree/main --policy abort
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			ref, err := client.ParseReference(args[0])
			if err != nil {
				return err
			}
			if ref.Revision != "" {
				options.Client.Revision = ref.Revision
			}
			ctx, cancel := BaseContext()
			defer cancel()

			session, err := options.NewSession(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer session.Close()

			dir := session.Settings.Get().DownloadDir
			if len(args) > 1 {
				dir = args[1]
			}
			if dir == "" {
				dir = "."
			}
			session.Display.BarName = ref.String()
			id, err := session.Runner.SubmitDownload(ref.ID, dir)
			if err != nil {
				return err
			}
			_, err = session.Wait(ctx, id)
			return err
		},
	}
	return cmd
}
