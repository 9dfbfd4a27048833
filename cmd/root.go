package cmd

import (
	"fmt"
	"os"

	"github.com/openr-go/openr/cmd/kv"
	"github.com/openr-go/openr/cmd/peer"
	"github.com/openr-go/openr/cmd/serve"
	"github.com/openr-go/openr/cmd/util"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "openr",
		Short: "eventually-consistent key-value routing platform",
		Long: fmt.Sprintf(`openr (v%s)

A distributed key-value store built around gossiped, eventually-consistent
replication: peers flood accepted deltas to each other rather than
agreeing on a single log, organized per-area with per-key versioning and
TTL-based garbage collection.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of openr",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("openr v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(peer.PeerCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
