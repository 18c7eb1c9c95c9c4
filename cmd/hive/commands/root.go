package commands

import (
	"github.com/hivemesh/hive/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command for the hive daemon
var RootCmd = &cobra.Command{
	Use:              "hive",
	Short:            "hive coordination",
	TraverseChildren: true,
}
