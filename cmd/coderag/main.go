// Command coderag is the code-aware retrieval engine's CLI: an MCP
// stdio server for editor integration plus one-shot search and
// feedback commands for local use.
package main

import (
	"fmt"
	"os"

	"github.com/coderag/engine/cmd/coderag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
