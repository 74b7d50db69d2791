package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the accounts managed by the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		chainClient, closeChain, err := dialChain(cmd.Context())
		if err != nil {
			return err
		}
		defer closeChain()

		accounts, err := chainClient.ListAccounts(cmd.Context())
		if err != nil {
			return err
		}
		for _, account := range accounts {
			fmt.Fprintln(cmd.OutOrStdout(), account.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}
