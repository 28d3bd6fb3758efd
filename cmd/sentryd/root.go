// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package main is the sentryd CLI: a cobra root command plus serve and
// replay subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentryd",
	Short: "sentryd runs an embedded HTTP traffic inspection engine",
	Long: `sentryd loads a rule file and drives the sentrytx rule engine and
streaming body-edit filter against an HTTP intermediary, exposing an admin
server for health, reload, and stats.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "sentryd.yaml", "config file path")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
