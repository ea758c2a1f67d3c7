// This program performs administrative tasks against the store of a stopped
// node.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ardanlabs/statechain/app/tooling/admin/cmd"
	"github.com/ardanlabs/statechain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	log.Infow("startup", "version", build)

	return cmd.NewRoot(log).ExecuteContext(context.Background())
}
