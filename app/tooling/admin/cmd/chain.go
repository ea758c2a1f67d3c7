package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/ledger"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func ledgerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Print the miners ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(store kvstore.Store) error {
				tbl := ledger.New(opts.log, kvstore.Namespace(store, state.NamespaceLedger))
				if err := tbl.Load(cmd.Context()); err != nil {
					if errors.Is(err, kvstore.ErrNotFound) {
						fmt.Fprintln(cmd.OutOrStdout(), "ledger is empty")
						return nil
					}
					return err
				}

				for _, e := range tbl.Entries() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", hexutil.Encode(e.Key), e.Amount)
				}
				return nil
			})
		},
	}
}

func blocksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "Print every block in the store and check its identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(store kvstore.Store) error {
				blocks := database.NewBlockStore(kvstore.Namespace(store, state.NamespaceBlocks))

				fn := func(number uint64, b database.Block) error {
					fmt.Fprintf(cmd.OutOrStdout(), "%d %s root %s txs %d\n", number, b.Hash(), b.StateRoot, len(b.Transactions))
					return nil
				}

				return blocks.ForEach(cmd.Context(), fn)
			})
		},
	}
}
