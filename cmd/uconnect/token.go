package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uconnect/campus/internal/auth"
)

// newTokenCommand mints a credential for local testing. It needs the same key
// files as the server, otherwise the token is signed with a throwaway key.
func newTokenCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "token <user-id>",
		Short:        "Print a signed auth token for a user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			if err := initAuth(cfg, logger); err != nil {
				return err
			}
			token, err := auth.CreateJWT(id.String())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
