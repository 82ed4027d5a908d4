package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for dpalgo
var RootCmd = &cobra.Command{
	Use:              "dpalgo",
	Short:            "dpalgo atomic registers",
	TraverseChildren: true,
}
