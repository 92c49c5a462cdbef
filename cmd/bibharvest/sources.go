// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bibharvest/internal/site"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the supported portals",
	Long: `Sources lists every portal bibharvest can harvest, in merge priority
order: when two equally complete duplicate records collide during
unification, the source listed first wins.`,
	Run: func(cmd *cobra.Command, args []string) {
		registry := site.NewRegistry()
		fmt.Fprintf(os.Stdout, "%-8s  %s\n", "Source", "Base URL")
		for _, src := range registry.Sources() {
			adapter, _ := registry.Lookup(src)
			fmt.Fprintf(os.Stdout, "%-8s  %s\n", src, adapter.BaseURL())
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
