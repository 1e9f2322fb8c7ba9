package main

import (
	"fmt"
	"os"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if msg := fault.Message(err); fault.KindOf(err) != "" {
			fmt.Fprintf(os.Stderr, "weavemint: %s\n  %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "weavemint: %v\n", err)
		}
		os.Exit(1)
	}
}
