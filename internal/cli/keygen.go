package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcfw/ledgercert/internal/node"
	"github.com/tcfw/ledgercert/pkg/cryptography"
)

var (
	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "generate a BLS12-381 validator signing key",
		RunE:  runKeygen,
	}
)

func init() {
	keygenCmd.Flags().StringP("out", "o", "signing.key", "file to write the private key to")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	priv, err := node.GenerateSigningKey(out)
	if err != nil {
		return err
	}

	pk, err := cryptography.EncodeMultibase(priv.PublicKey())
	if err != nil {
		return errors.Wrap(err, "encoding public key")
	}

	author, err := node.AuthorOf(priv.PublicKey())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "key file:   %s\npublic key: %s\nauthor:     %s\n", out, pk, author.String())

	return nil
}
