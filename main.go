package main

import (
	"fmt"
	"os"

	"github.com/km-arc/go-wiring/framework/console"
)

func main() {
	if err := console.Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
