// Command itmview decodes ITM trace from an SWO serial port or a capture
// file and prints exceptions and stimulus port writes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
