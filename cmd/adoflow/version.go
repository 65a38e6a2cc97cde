package main

import (
	"fmt"
	"strings"

	"github.com/MuiGoku123432/adoflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of adoflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("adoflow version %s\n", strings.TrimSpace(adoflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
