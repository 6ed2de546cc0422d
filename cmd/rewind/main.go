package main

import (
	"os"

	"github.com/aretw0/rewind"
)

func main() {
	// Workers and snapshots re-execute this binary; they never reach cobra.
	if rewind.IsChild() {
		os.Exit(rewind.RunChild())
	}
	Execute()
}
