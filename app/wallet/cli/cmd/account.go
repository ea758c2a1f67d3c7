package cmd

import (
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account for the specific wallet",
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	accountID, err := walletAccount()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), accountID)
	return nil
}

// walletAccount returns the account of the selected private key.
func walletAccount() (database.AccountID, error) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return "", err
	}

	return database.PublicKeyToAccountID(privateKey.PublicKey), nil
}
