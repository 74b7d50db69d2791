package cmd

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/yukia3e/evm-contract-deployer/internal/bls"
)

var (
	blsDomain  string
	blsMessage string
)

var blsCheckCmd = &cobra.Command{
	Use:   "bls-check",
	Short: "Generate a BN254 key, sign a message and verify the signature",
	RunE: func(cmd *cobra.Command, args []string) error {
		var domain bls.Domain
		if blsDomain != "" {
			raw, err := hexutil.Decode(blsDomain)
			if err != nil {
				return fmt.Errorf("invalid --domain: %w", err)
			}
			d, err := bls.DomainFromBytes(raw)
			if err != nil {
				return err
			}
			domain = *d
		}
		message := []byte(blsMessage)

		sk, err := bls.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		sig, err := sk.Sign(domain, message)
		if err != nil {
			return err
		}

		ok, err := bls.Verify(sk.PublicKey(), domain, message, sig)
		if err != nil {
			return err
		}
		tampered, err := bls.Verify(sk.PublicKey(), domain, append(message, 0x00), sig)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "public key: %s\n", hexutil.Encode(sk.PublicKey().Bytes()))
		fmt.Fprintf(out, "signature:  %s\n", hexutil.Encode(sig.Bytes()))
		fmt.Fprintf(out, "verified:   %t\n", ok)
		fmt.Fprintf(out, "tampered:   %t\n", tampered)

		if !ok || tampered {
			return errors.New("pairing check failed")
		}
		return nil
	},
}

func init() {
	blsCheckCmd.Flags().StringVar(&blsDomain, "domain", "", "32 byte hex domain (default all zero)")
	blsCheckCmd.Flags().StringVar(&blsMessage, "message", "hello", "Message to sign")
	rootCmd.AddCommand(blsCheckCmd)
}
