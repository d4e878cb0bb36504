package model

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/client"
	"sigs.k8s.io/yaml"
)

func NewInfoCmd(options *GlobalOptions) *cobra.Command {
	output := "table"
	cmd := &cobra.Command{
		Use:   "info <owner/name[@revision]>",
		Short: "show model details",
		Example: `
  hubx info bert-base-uncased/bert
  hubx info https://huggingface.co/acme/model -o yaml
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			ref, err := client.ParseReference(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := BaseContext()
			defer cancel()

			session, err := options.NewSession(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer session.Close()

			info, err := session.Client.GetInfo(ctx, ref.ID)
			if err != nil {
				return err
			}
			switch output {
			case "yaml":
				content, err := yaml.Marshal(info)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(content))
			case "table":
				session.Display.Render(client.ShowInfo(info))
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "output format: table or yaml")
	return cmd
}

func NewFilesCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files <owner/name[@revision]>",
		Short: "list the files of a model",
		Example: `
  hubx files acme/model@v1.0
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

			files, err := session.Client.ListFiles(ctx, ref.ID)
			if err != nil {
				return err
			}
			session.Display.Render(client.ShowFiles(files))
			return nil
		},
	}
	return cmd
}
