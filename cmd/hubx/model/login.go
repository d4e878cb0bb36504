package model

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewLoginCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [token]",
		Short: "verify a token and save it",
		Example: `
  hubx login hf_xxx
  hubx login --endpoint https://hub.example.com
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) > 0 {
				token = args[0]
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "please input token:")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return err
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("empty token")
			}

			ctx, cancel := BaseContext()
			defer cancel()

			session, err := options.NewSession(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer session.Close()

			session.Credential.Set(token)
			account, err := session.Client.Remote.WhoAmI(ctx)
			if err != nil {
				return err
			}
			saved := session.Settings.Get()
			saved.Token = token
			if err := session.Settings.Save(saved); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, token saved to %s\n", account.Name, session.Settings.Path)
			return nil
		},
	}
	return cmd
}
