package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func rootDigestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the state root the other commands read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(store kvstore.Store) error {
				_, root, err := opts.openTrie(cmd.Context(), store)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), root)
				return nil
			})
		},
	}
}

func getCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value at a hex key, decoded when the key is an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}

			return opts.withStore(func(store kvstore.Store) error {
				tr, _, err := opts.openTrie(cmd.Context(), store)
				if err != nil {
					return err
				}

				value, err := tr.Get(cmd.Context(), key)
				if err != nil {
					return err
				}

				return printValue(cmd, key, value)
			})
		},
	}
}

func putCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a hex value at a hex key and print the new root",
		Long:  "Store a hex value at a hex key and print the new root. The nodes are written to the store but no block commits to the new root.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}

			value, err := hexutil.Decode(args[1])
			if err != nil {
				return fmt.Errorf("value: %w", err)
			}

			return opts.withStore(func(store kvstore.Store) error {
				tr, _, err := opts.openTrie(cmd.Context(), store)
				if err != nil {
					return err
				}

				if err := tr.Put(cmd.Context(), key, value); err != nil {
					return err
				}

				root, err := tr.Commit(cmd.Context())
				if err != nil {
					return err
				}

				opts.log.Infow("put", "key", hexutil.Encode(key), "root", root)
				fmt.Fprintln(cmd.OutOrStdout(), root)
				return nil
			})
		},
	}
}

func proveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prove <key>",
		Short: "Print and check the proof for a hex key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("key: %w", err)
			}

			return opts.withStore(func(store kvstore.Store) error {
				tr, root, err := opts.openTrie(cmd.Context(), store)
				if err != nil {
					return err
				}

				proof, err := tr.Prove(cmd.Context(), key)
				if err != nil {
					return err
				}

				value, err := trie.VerifyProof(root, key, proof)
				present := err == nil
				if err != nil && !errors.Is(err, trie.ErrNotFound) {
					return err
				}

				nodes := make([]hexutil.Bytes, len(proof.Nodes))
				for i, n := range proof.Nodes {
					nodes[i] = n
				}

				resp := struct {
					Root    string          `json:"root"`
					Key     hexutil.Bytes   `json:"key"`
					Present bool            `json:"present"`
					Value   hexutil.Bytes   `json:"value,omitempty"`
					Nodes   []hexutil.Bytes `json:"nodes"`
				}{
					Root:    root.Hex(),
					Key:     key,
					Present: present,
					Value:   value,
					Nodes:   nodes,
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			})
		},
	}
}

// printValue prints the raw value and, for account keys, the account it
// decodes to.
func printValue(cmd *cobra.Command, key []byte, value []byte) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "value: %s\n", hexutil.Encode(value))

	accountID, err := database.BytesToAccountID(key)
	if err != nil {
		return nil
	}

	acct, err := database.DecodeAccount(accountID, value)
	if err != nil {
		return nil
	}

	fmt.Fprintf(out, "account: %s nonce: %d balance: %s\n", acct.AccountID, acct.Nonce, acct.Balance)
	return nil
}
