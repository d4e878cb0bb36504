package model

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/client"
)

func NewInferCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer <owner/name> <input|->",
		Short: "run remote inference on a model",
		Example: `
  hubx infer acme/sentiment "I like this"
  echo "I like this" | hubx infer acme/sentiment -
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return errors.New("a model and an input are required")
			}
			ref, err := client.ParseReference(args[0])
			if err != nil {
				return err
			}
			input := strings.Join(args[1:], " ")
			if input == "-" {
				content, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				input = strings.TrimRight(string(content), "\n")
			}
			ctx, cancel := BaseContext()
			defer cancel()

			session, err := options.NewSession(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer session.Close()

			id, err := session.Runner.SubmitInference(ref.ID, input)
			if err != nil {
				return err
			}
			_, err = session.Wait(ctx, id)
			return err
		},
	}
	return cmd
}
