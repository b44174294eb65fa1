package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "gomerchant",
		Short:   "GoMerchant - card payment gateway service",
		Long:    `GoMerchant exposes one card-processing API over many payment processors, with per-account credentials and a transaction log.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newGatewaysCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
