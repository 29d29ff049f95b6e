package api

import "time"

// ServerConfig represents the server subcommand configuration.
type ServerConfig struct {
	Addr                        string        `help:"API server listen address" default:":3242" env:"VUGA_API_ADDR"`
	Password                    string        `kong:"-"`
	DeviceHandlerConnectTimeout time.Duration `help:"Time before auto-cleanup occurs when device handler has no active connection" default:"5s" env:"VUGA_API_DEVICE_HANDLER_TIMEOUT"`
	ConnectionTimeout           time.Duration `kong:"-"`
}
