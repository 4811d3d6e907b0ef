package main

import (
	"fmt"
	"os"

	"github.com/tphakala/callctl/cmd"
	"github.com/tphakala/callctl/internal/conf"
	"github.com/tphakala/callctl/internal/logging"
)

func main() {
	logging.Init()

	v, err := conf.New()
	if err != nil {
		logging.Fatal("error initializing configuration", "error", err)
	}

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(v, settings)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "callctl: %v\n", err)
		os.Exit(1)
	}
}
