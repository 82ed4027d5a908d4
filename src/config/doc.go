// Package config defines the configuration for a dpalgo process.
//
// Regardless of how dpalgo is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. The command line reads
// an optional config file from Config.DataDir:
//
//  dpalgo.toml // (or .yaml, .json) any of the options below, by flag name.
//
// When Store is set, each node keeps its registers in a badger database under
// DatabaseDir, in a sub-directory named after its listening address.
package config
