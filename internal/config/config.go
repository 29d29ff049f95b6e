// Package config defines the top-level CLI structure parsed by kong.
package config

import (
	"github.com/vuga-dev/vuga/internal/cmd"
)

// LogOptions groups the logging flags shared by all commands.
type LogOptions struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"VUGA_LOG_LEVEL"`
	File    string `help:"Write logs to this file instead of stdout/stderr" env:"VUGA_LOG_FILE"`
	RawFile string `help:"Write raw wire traffic hex dumps to this file" env:"VUGA_LOG_RAW_FILE"`
}

// CLI is the root command structure.
type CLI struct {
	Config string     `help:"Path to a configuration file (JSON, YAML or TOML)" env:"VUGA_CONFIG" type:"path"`
	Log    LogOptions `embed:"" prefix:"log."`

	Server    cmd.Server        `cmd:"" help:"Run the USB-IP server and control API"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration file utilities"`
}
