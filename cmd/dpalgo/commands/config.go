package commands

import (
	"github.com/mosaicnetworks/dpalgo/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Dpalgo config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Dpalgo: *config.NewDefaultConfig(),
	}
}
