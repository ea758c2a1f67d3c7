package worker_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/memory"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	miner = database.AccountID("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	alice = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	bob   = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

func TestAssembly(t *testing.T) {
	t.Log("Given the need to assemble blocks in the background.")
	{
		t.Logf("\tTest 0:\tWhen enough transfers are pending.")
		{
			ctx := context.Background()

			st, err := state.New(ctx, state.Config{
				MinerAccountID: miner,
				Store:          memory.New(),
				Genesis: genesis.Genesis{
					TransPerBlock: 2,
					MiningReward:  10,
					Balances:      map[string]uint64{string(alice): 100},
				},
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the state: %v", failed, err)
			}

			w := worker.Run(st, time.Hour, func(string, ...any) {})
			defer st.Shutdown()

			for nonce := uint64(1); nonce <= 2; nonce++ {
				tx := database.Tx{Nonce: nonce, FromID: alice, ToID: bob, Value: big.NewInt(5)}
				if err := st.Transfer(ctx, tx); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to transfer: %v", failed, err)
				}
			}

			deadline := time.Now().Add(5 * time.Second)
			for {
				if _, number, err := st.QueryLatestBlock(ctx); err == nil && number == 1 {
					break
				}
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest 0:\tShould assemble a block once two transfers are pending.", failed)
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest 0:\tShould assemble a block once two transfers are pending.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould empty the mempool.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould empty the mempool.", success)

			if st.Worker != w {
				t.Fatalf("\t%s\tTest 0:\tShould register itself with the state.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould register itself with the state.", success)
		}
	}
}
