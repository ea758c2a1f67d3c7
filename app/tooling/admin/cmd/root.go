// Package cmd contains the admin commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/backends"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the flags shared by every command.
type options struct {
	log    *zap.SugaredLogger
	dbKind string
	dbPath string
	root   string
}

// NewRoot constructs the admin command with all of its subcommands.
func NewRoot(log *zap.SugaredLogger) *cobra.Command {
	opts := options{log: log}

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect and change the state store of a stopped node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dbKind, "db-kind", "k", backends.Pebble, "Kind of store: memory, disk, leveldb, badger or pebble.")
	rootCmd.PersistentFlags().StringVarP(&opts.dbPath, "db-path", "d", "zblock/state.db", "Path to the store.")
	rootCmd.PersistentFlags().StringVarP(&opts.root, "root", "r", "", "Trie root digest to read from, the latest block's root by default.")

	rootCmd.AddCommand(
		rootDigestCmd(&opts),
		getCmd(&opts),
		putCmd(&opts),
		proveCmd(&opts),
		ledgerCmd(&opts),
		blocksCmd(&opts),
	)

	return rootCmd
}

// =============================================================================

// withStore opens the store for the duration of fn.
func (o *options) withStore(fn func(store kvstore.Store) error) (err error) {
	store, err := backends.Open(backends.Config{
		Kind: o.dbKind,
		Path: o.dbPath,
	})
	if err != nil {
		return err
	}

	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(store)
}

// openTrie opens the state trie at the root flag or at the state root of
// the latest block.
func (o *options) openTrie(ctx context.Context, store kvstore.Store) (*trie.Trie, digest.Digest, error) {
	root, err := o.resolveRoot(ctx, store)
	if err != nil {
		return nil, digest.Zero, err
	}

	return trie.Open(kvstore.Namespace(store, state.NamespaceTrie), root), root, nil
}

func (o *options) resolveRoot(ctx context.Context, store kvstore.Store) (digest.Digest, error) {
	if o.root != "" {
		return digest.FromHex(o.root)
	}

	blocks := database.NewBlockStore(kvstore.Namespace(store, state.NamespaceBlocks))

	b, _, err := blocks.Latest(ctx)
	if err != nil {
		if errors.Is(err, database.ErrBlockNotFound) {
			return digest.Zero, fmt.Errorf("no blocks in the store, use --root: %w", err)
		}
		return digest.Zero, err
	}

	return b.StateRoot, nil
}
