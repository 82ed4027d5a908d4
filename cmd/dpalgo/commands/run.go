package commands

import (
	"fmt"

	"github.com/mosaicnetworks/dpalgo/src/config"
	"github.com/mosaicnetworks/dpalgo/src/dpalgo"
	"github.com/mosaicnetworks/dpalgo/src/peers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts the dpalgo nodes of this process
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [hub ip:port] [ip:port...]",
		Short: "Run nodes",
		Long: `Run one node per listening address. Every node registers with the
hub and waits for it to initialize the system.

The hub and the listening addresses can be given as arguments, in which case
they take precedence over --hub and --listen:

  dpalgo run 127.0.0.1:5000 127.0.0.1:5004 127.0.0.1:5005 127.0.0.1:5006`,
		Args:    checkArgs,
		PreRunE: loadConfig,
		RunE:    runDpalgo,
	}
	AddRunFlags(cmd.Flags())
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runDpalgo(cmd *cobra.Command, args []string) error {
	// arguments are valid, errors from here on are not usage errors
	cmd.SilenceUsage = true

	engine := dpalgo.NewDpalgo(&_config.Dpalgo)

	if err := engine.Init(); err != nil {
		_config.Dpalgo.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(fs *pflag.FlagSet) {
	fs.String("datadir", _config.Dpalgo.DataDir, "Top-level directory for configuration and data")
	fs.String("log", _config.Dpalgo.LogLevel, "debug, info, warn, error, fatal, panic")
	fs.String("log-file", _config.Dpalgo.LogFile, "Also write the log to this file")
	fs.String("owner", _config.Dpalgo.Owner, "Alias the nodes register under")

	// Network
	fs.String("hub", _config.Dpalgo.HubAddr, "IP:Port of the hub")
	fs.StringSliceP("listen", "l", _config.Dpalgo.BindAddrs, "Listen IP:Port, one node per address")
	fs.DurationP("timeout", "t", _config.Dpalgo.TCPTimeout, "TCP Timeout")
	fs.Uint32("max-frame", _config.Dpalgo.MaxFrame, "Largest frame accepted or sent, in bytes")
	fs.Int("queue-size", _config.Dpalgo.QueueSize, "Capacity of each node's inbound queue")

	// Service
	fs.Bool("no-service", _config.Dpalgo.NoService, "Disable HTTP service")
	fs.StringP("service-listen", "s", _config.Dpalgo.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	fs.Bool("store", _config.Dpalgo.Store, "Persist registers in badgerDB")
	fs.String("db", _config.Dpalgo.DatabaseDir, "Dabatabase directory")
}

// checkArgs accepts no argument, or the hub followed by at least one listening
// address.
func checkArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("expected hub ip:port followed by at least one ip:port, got %d arguments", len(args))
	}

	for _, a := range args {
		if _, err := peers.ParseProcessAddr(a); err != nil {
			return fmt.Errorf("invalid address %q: %v", a, err)
		}
	}

	return nil
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		_config.Dpalgo.HubAddr = args[0]
		_config.Dpalgo.BindAddrs = args[1:]
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Dpalgo.SetDataDir(_config.Dpalgo.DataDir)

	logFields := logrus.Fields{
		"dpalgo.DataDir":     _config.Dpalgo.DataDir,
		"dpalgo.HubAddr":     _config.Dpalgo.HubAddr,
		"dpalgo.BindAddrs":   _config.Dpalgo.BindAddrs,
		"dpalgo.Owner":       _config.Dpalgo.Owner,
		"dpalgo.ServiceAddr": _config.Dpalgo.ServiceAddr,
		"dpalgo.NoService":   _config.Dpalgo.NoService,
		"dpalgo.Store":       _config.Dpalgo.Store,
		"dpalgo.LogLevel":    _config.Dpalgo.LogLevel,
		"dpalgo.TCPTimeout":  _config.Dpalgo.TCPTimeout,
		"dpalgo.MaxFrame":    _config.Dpalgo.MaxFrame,
		"dpalgo.QueueSize":   _config.Dpalgo.QueueSize,
	}

	if _config.Dpalgo.Store {
		logFields["dpalgo.DatabaseDir"] = _config.Dpalgo.DatabaseDir
	}

	_config.Dpalgo.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/dpalgo.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.Dpalgo.DataDir)   // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Dpalgo.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Dpalgo.Logger().Debugf("No config file found in: %s", _config.Dpalgo.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
