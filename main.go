// main is the entry point of the covhub CLI.
package main

import (
	"fmt"
	"os"

	"github.com/covhub/covhub/cmd"
)

func main() {
	err := cmd.Execute()
	cmd.CloseStores()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
