package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/spf13/cobra"
)

var (
	blockIdentity string
	txIndex       int
)

var txProofCmd = &cobra.Command{
	Use:   "txproof",
	Short: "Print a transfer of a block after checking the block commits to it.",
	Args:  cobra.NoArgs,
	RunE:  txProofRun,
}

func init() {
	rootCmd.AddCommand(txProofCmd)
	txProofCmd.Flags().StringVarP(&blockIdentity, "block", "b", "", "Identity of the block.")
	txProofCmd.Flags().IntVarP(&txIndex, "index", "i", 0, "Position of the transfer in the block.")
}

func txProofRun(cmd *cobra.Command, args []string) error {
	identity, err := digest.FromHex(blockIdentity)
	if err != nil {
		return fmt.Errorf("block identity: %w", err)
	}

	p, err := fetchTxProof(identity, txIndex)
	if err != nil {
		return err
	}

	tx, err := checkTxProof(identity, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "block: %s index: %d from: %s to: %s nonce: %d value: %s\n", identity, p.Index, tx.FromID, tx.ToID, tx.Nonce, tx.Value)
	return nil
}

// fetchTxProof asks the node for the transfer at the index of the block.
func fetchTxProof(identity digest.Digest, index int) (database.TxProofData, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/blocks/%s/proof/%d", url, identity, index))
	if err != nil {
		return database.TxProofData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return database.TxProofData{}, responseError(resp)
	}

	var p database.TxProofData
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return database.TxProofData{}, err
	}

	return p, nil
}

// checkTxProof verifies the proof is for the block that was asked for and
// returns the transfer the block commits to.
func checkTxProof(identity digest.Digest, p database.TxProofData) (database.Tx, error) {
	if got, err := digest.FromBytes(p.Identity); err != nil || got != identity {
		return database.Tx{}, fmt.Errorf("%w: proof is for block %x", database.ErrIdentityMismatch, []byte(p.Identity))
	}

	return database.VerifyTxProof(p)
}
