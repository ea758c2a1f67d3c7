package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	nonce uint64
	to    string
	value string
)

type transferRequest struct {
	From  database.AccountID `json:"from"`
	To    string             `json:"to"`
	Nonce uint64             `json:"nonce"`
	Value string             `json:"value"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transfer",
	Args:  cobra.NoArgs,
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce for the transfer, the next nonce of the account when zero.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account to send to.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	from, err := walletAccount()
	if err != nil {
		return err
	}

	n := nonce
	if n == 0 {
		ap, err := fetchAccountProof(from)
		if err != nil {
			return fmt.Errorf("fetching nonce: %w", err)
		}
		n = ap.Nonce + 1
	}

	tr := transferRequest{
		From:  from,
		To:    to,
		Nonce: n,
		Value: value,
	}

	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/accounts/transfer", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %s from %s to %s nonce %d\n", value, from, to, n)
	return nil
}
