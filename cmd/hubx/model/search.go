package model

import (
	"strings"

	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/types"
)

func NewSearchCmd(options *GlobalOptions) *cobra.Command {
	filter := types.SearchFilter{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "search models",
		Example: `
  hubx search bert
  hubx search --task "Text Classification" --library transformers --sort downloads --limit 20
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()

			session, err := options.NewSession(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer session.Close()

			id, err := session.Runner.SubmitSearch(strings.Join(args, " "), filter)
			if err != nil {
				return err
			}
			_, err = session.Wait(ctx, id)
			return err
		},
	}
	cmd.Flags().StringVar(&filter.Task, "task", filter.Task, "pipeline tag, e.g. text-classification")
	cmd.Flags().StringVar(&filter.Library, "library", filter.Library, "library, e.g. transformers")
	cmd.Flags().StringVar(&filter.Author, "author", filter.Author, "model owner")
	cmd.Flags().StringVar(&filter.Sort, "sort", filter.Sort, "sort by downloads or likes")
	cmd.Flags().IntVar(&filter.Limit, "limit", 30, "max number of results")
	return cmd
}
