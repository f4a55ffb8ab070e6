// Command shadething runs wake cycles on a host, serves a local shadow hub
// and inspects persisted state and the cycle journal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
