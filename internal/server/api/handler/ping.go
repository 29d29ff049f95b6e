package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/vuga-dev/vuga/apitypes"
	"github.com/vuga-dev/vuga/internal/server/api"
)

const serverName = "vuga"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Ping returns a handler answering with the server identity.
func Ping() api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		b, err := json.Marshal(apitypes.PingResponse{Server: serverName, Version: Version})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
