package main

import (
	"fmt"
	"os"

	"github.com/valksor/go-ablauf/cmd/ablauf/commands"
	"github.com/valksor/go-ablauf/internal/display"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, display.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
