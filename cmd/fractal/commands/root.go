package commands

import (
	"github.com/fractalnet/fractal/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Fractal
var RootCmd = &cobra.Command{
	Use:              "fractal",
	Short:            "fractal p2p micro-posting",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		NewKeygenCmd(),
		NewSignalCmd(),
		VersionCmd,
	)
}
