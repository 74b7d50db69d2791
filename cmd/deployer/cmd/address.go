package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/service"
)

var (
	addressSender string
	addressNonce  uint64
)

// Works offline.
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Derive the address of a contract created by sender at nonce",
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, err := hexutil.Decode(addressSender)
		if err != nil {
			return fmt.Errorf("invalid --sender: %w", err)
		}
		address, err := service.DeriveContractAddressBytes(sender, addressNonce)
		if err != nil {
			return err
		}
		payload, err := service.EncodeCreationPayload(common.BytesToAddress(sender), addressNonce)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rlp:     %s\n", hexutil.Encode(payload))
		fmt.Fprintf(out, "address: %s\n", address.Hex())
		return nil
	},
}

func init() {
	addressCmd.Flags().StringVar(&addressSender, "sender", "", "Deploying account, 0x-prefixed")
	addressCmd.Flags().Uint64Var(&addressNonce, "nonce", 0, "Nonce of the creation transaction")
	_ = addressCmd.MarkFlagRequired("sender")
	rootCmd.AddCommand(addressCmd)
}
