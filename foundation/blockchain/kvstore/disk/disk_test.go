package disk_test

import (
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/disk"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/storetest"
)

func TestDisk(t *testing.T) {
	storetest.Run(t, func(t *testing.T) kvstore.Store {
		d, err := disk.New(t.TempDir())
		if err != nil {
			t.Fatalf("opening disk store: %v", err)
		}
		return d
	})
}
