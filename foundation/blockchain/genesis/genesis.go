// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time         `json:"date"`
	ChainID       uint16            `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	TransPerBlock uint16            `json:"trans_per_block"` // The maximum number of transfers that can be in a block.
	MiningReward  uint64            `json:"mining_reward"`   // Reward credited to the miner of a block.
	Balances      map[string]uint64 `json:"balances"`
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	return genesis, nil
}

// Accounts returns the seed accounts in address order.
func (g Genesis) Accounts() ([]database.Account, error) {
	accounts := make([]database.Account, 0, len(g.Balances))
	for hex, balance := range g.Balances {
		accountID, err := database.ToAccountID(hex)
		if err != nil {
			return nil, fmt.Errorf("genesis balance: %w", err)
		}

		accounts = append(accounts, database.NewAccount(accountID, new(big.Int).SetUint64(balance)))
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountID < accounts[j].AccountID
	})

	return accounts, nil
}
