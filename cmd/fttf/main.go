// Command fttf indexes and searches browsing history.
package main

import (
	"os"

	"github.com/Aman-CERP/fttf/cmd/fttf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
