package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jiangtaoluo/jet-NFD/fw/core"
	"github.com/jiangtaoluo/jet-NFD/std/utils"
	"github.com/jiangtaoluo/jet-NFD/std/utils/toolutils"
	"github.com/spf13/cobra"
)

var config = core.DefaultConfig()

var CmdNdndrw = &cobra.Command{
	Use:     "ndndrw CONFIG-FILE",
	Short:   "NDN forwarding daemon with ad-hoc-aware random-wait strategy",
	Version: utils.NDNdVersion,
	Args:    cobra.ExactArgs(1),
	Run:     run,
}

func init() {
	CmdNdndrw.Flags().StringVar(&config.Core.CpuProfile, "cpu-profile", "", "Write CPU profile to file")
	CmdNdndrw.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "Write memory profile to file")
	CmdNdndrw.Flags().StringVar(&config.Core.BlockProfile, "block-profile", "", "Write block profile to file")
}

func run(cmd *cobra.Command, args []string) {
	configfile := args[0]
	config.Core.BaseDir = filepath.Dir(configfile)

	toolutils.ReadYaml(config, configfile)

	forwarder := NewForwarder(config)
	forwarder.Start()

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
	receivedSig := <-sigChannel
	core.Log.Info(forwarder, "Received signal - exit", "signal", receivedSig)

	forwarder.Stop()
}
