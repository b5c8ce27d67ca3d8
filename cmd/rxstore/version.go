package main

import (
	"fmt"

	"github.com/aretw0/rxstore"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of rxstore",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rxstore version %s\n", rxstore.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
