// pebbl-lsp is the PEBBL language server, spoken over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/pebbl-lang/pebbl/internal/lsp"
)

func main() {
	if err := lsp.NewServer().Run(); err != nil {
		fmt.Fprintf(os.Stderr, "pebbl-lsp: %v\n", err)
		os.Exit(1)
	}
}
