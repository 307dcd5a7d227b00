// Command casbak is the CLI front end for the casbak backup engine.
package main

import (
	"os"

	"github.com/intellitree/casbak/internal/clicmd"
)

func main() {
	os.Exit(clicmd.Execute())
}
