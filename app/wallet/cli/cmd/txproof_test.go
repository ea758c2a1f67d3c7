package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

func TestTxProof(t *testing.T) {
	t.Log("Given the need to check a transfer a node says a block holds.")
	{
		alice := database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
		bob := database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

		txs := make([]database.BlockTx, 3)
		for i := range txs {
			tx, err := database.NewTx(uint64(i+1), alice, bob, big.NewInt(int64(i+1)))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build a transfer: %v", failed, err)
			}
			if txs[i], err = tx.Encode(); err != nil {
				t.Fatalf("\t%s\tShould be able to encode a transfer: %v", failed, err)
			}
		}

		b, err := database.NewBlock(alice.Bytes(), txs, digest.Sum([]byte("state")))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a block: %v", failed, err)
		}
		identity := b.Hash()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var index int
			if _, err := fmt.Sscanf(r.URL.Path, "/v1/blocks/"+identity.Hex()+"/proof/%d", &index); err != nil {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"error": "block not found"})
				return
			}

			p, err := b.ProveTx(index)
			if err != nil {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			json.NewEncoder(w).Encode(p)
		}))
		defer srv.Close()
		url = srv.URL

		testID := 0
		t.Logf("\tTest %d:\tWhen the node serves the transfer of the block.", testID)
		{
			p, err := fetchTxProof(identity, 2)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to fetch the proof: %v", failed, testID, err)
			}

			tx, err := checkTxProof(identity, p)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the proof: %v", failed, testID, err)
			}
			if tx.Nonce != 3 || tx.Value.Int64() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould return the third transfer: %v", failed, testID, tx)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the proof.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the proof is for another block.", testID)
		{
			p, err := fetchTxProof(identity, 0)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to fetch the proof: %v", failed, testID, err)
			}

			other := digest.Sum([]byte("other"))
			if _, err := checkTxProof(other, p); !errors.Is(err, database.ErrIdentityMismatch) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrIdentityMismatch: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrIdentityMismatch.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the index is past the last transfer.", testID)
		{
			if _, err := fetchTxProof(identity, len(txs)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould return the node's error.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return the node's error.", success, testID)
		}
	}
}
