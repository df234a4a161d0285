package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/hold-ledger/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "hold-ledger: %v\n", err)
		os.Exit(1)
	}
}
