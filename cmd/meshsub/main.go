// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package main

import (
	"log"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/node"
)

const (
	flagDebug   = "debug"
	flagDataDir = "datadir"
	flagPort    = "port"
	flagAPIPort = "apiport"
	flagLocal   = "local"

	flagGenesis      = "genesis"
	flagCommitWindow = "commit-window"
	flagRevealWindow = "reveal-window"
	flagSettleWindow = "settle-window"
)

var rootCmd = &cobra.Command{
	Use:   "meshsub",
	Short: "Meshsub peer scoring node",
	Run: func(cmd *cobra.Command, args []string) {
		config := node.DefaultConfig

		var err error
		config.Debug, err = cmd.Flags().GetBool(flagDebug)
		check(err)
		config.Datadir, err = cmd.Flags().GetString(flagDataDir)
		check(err)
		config.Port, err = cmd.Flags().GetInt(flagPort)
		check(err)
		config.APIPort, err = cmd.Flags().GetInt(flagAPIPort)
		check(err)
		config.Local, err = cmd.Flags().GetBool(flagLocal)
		check(err)

		genesis, err := cmd.Flags().GetInt64(flagGenesis)
		check(err)
		config.EpochConfig.Genesis = time.Unix(genesis, 0)
		config.EpochConfig.CommitWindow, err = cmd.Flags().GetDuration(flagCommitWindow)
		check(err)
		config.EpochConfig.RevealWindow, err = cmd.Flags().GetDuration(flagRevealWindow)
		check(err)
		config.EpochConfig.SettleWindow, err = cmd.Flags().GetDuration(flagSettleWindow)
		check(err)

		node.Run(config)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a nodekey in the data directory",
	Run: func(cmd *cobra.Command, args []string) {
		datadir, err := cmd.Flags().GetString(flagDataDir)
		check(err)
		check(os.MkdirAll(datadir, 0755))
		privKey := core.GenerateKey(nil)
		check(os.WriteFile(path.Join(datadir, node.NodekeyFile), privKey.Bytes(), 0600))
		log.Printf("generated nodekey, peer id: %s", privKey.PeerID())
	},
}

func main() {
	check(rootCmd.Execute())
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	rootCmd.PersistentFlags().Bool(flagDebug, false, "debug mode")
	rootCmd.PersistentFlags().StringP(flagDataDir, "d", "", "node data directory")
	rootCmd.MarkPersistentFlagRequired(flagDataDir)

	rootCmd.Flags().IntP(flagPort, "p", 15150, "p2p port")
	rootCmd.Flags().Int(flagAPIPort, 9040, "node api port")
	rootCmd.Flags().Bool(flagLocal, false, "run without joining the gossip network")

	rootCmd.Flags().Int64(flagGenesis, 0, "epoch genesis as unix seconds")
	rootCmd.MarkFlagRequired(flagGenesis)
	rootCmd.Flags().Duration(flagCommitWindow, time.Minute, "commit window length")
	rootCmd.Flags().Duration(flagRevealWindow, time.Minute, "reveal window length")
	rootCmd.Flags().Duration(flagSettleWindow, time.Minute, "settle window length")
}

func check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
