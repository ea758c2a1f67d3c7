package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// ErrProofMismatch is returned when the proof served by the node does not
// hold the account the node reported.
var ErrProofMismatch = errors.New("proof does not match the reported account")

type accountProof struct {
	Account database.AccountID `json:"account"`
	Nonce   uint64             `json:"nonce"`
	Balance string             `json:"balance"`
	Root    digest.Digest      `json:"root"`
	Proof   []hexutil.Bytes    `json:"proof"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance after checking the node's proof for it.",
	Args:  cobra.NoArgs,
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	accountID, err := walletAccount()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "For Account:", accountID)

	ap, err := fetchAccountProof(accountID)
	if err != nil {
		return err
	}

	acct, err := checkAccountProof(ap)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "nonce: %d balance: %s root: %s\n", acct.Nonce, acct.Balance, ap.Root)
	return nil
}

// fetchAccountProof asks the node for the account and its proof.
func fetchAccountProof(accountID database.AccountID) (accountProof, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/%s/proof", url, accountID))
	if err != nil {
		return accountProof{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return accountProof{}, responseError(resp)
	}

	var ap accountProof
	if err := json.NewDecoder(resp.Body).Decode(&ap); err != nil {
		return accountProof{}, err
	}

	return ap, nil
}

// checkAccountProof verifies the proof against the root the node reported
// and returns the account the proof holds.
func checkAccountProof(ap accountProof) (database.Account, error) {
	proof := trie.Proof{Nodes: make([][]byte, len(ap.Proof))}
	for i, n := range ap.Proof {
		proof.Nodes[i] = n
	}

	value, err := trie.VerifyProof(ap.Root, ap.Account.Bytes(), proof)
	if err != nil {
		return database.Account{}, err
	}

	acct, err := database.DecodeAccount(ap.Account, value)
	if err != nil {
		return database.Account{}, err
	}

	balance, ok := new(big.Int).SetString(ap.Balance, 10)
	if !ok || acct.Nonce != ap.Nonce || acct.Balance.Cmp(balance) != 0 {
		return database.Account{}, fmt.Errorf("%w: reported nonce %d balance %s, proven nonce %d balance %s", ErrProofMismatch, ap.Nonce, ap.Balance, acct.Nonce, acct.Balance)
	}

	return acct, nil
}

// responseError turns an error response from the node into an error.
func responseError(resp *http.Response) error {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("node responded %s", resp.Status)
	}

	return fmt.Errorf("node responded %s: %s", resp.Status, er.Error)
}
