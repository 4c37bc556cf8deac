package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qubitpage/qbp/internal/secrets"
)

func (a *app) tokenCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored backend token",
	}
	cmd.PersistentFlags().StringVar(&name, "name", ibmTokenName, "token name")

	set := &cobra.Command{
		Use:   "set <token>",
		Short: "Store a token in the encrypted secrets file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := strings.TrimSpace(args[0])
			if tok == "" {
				return fmt.Errorf("empty token")
			}
			if err := secrets.StoreToken(name, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token %q stored\n", name)
			return nil
		},
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove a stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.DeleteToken(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token %q deleted\n", name)
			return nil
		},
	}
	cmd.AddCommand(set, del)
	return cmd
}
