package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vuga-dev/vuga/apitypes"
	"github.com/vuga-dev/vuga/internal/server/api"
	apierror "github.com/vuga-dev/vuga/internal/server/api/error"
	"github.com/vuga-dev/vuga/internal/server/usb"
)

// AdapterInfo returns a handler reporting a graphics adapter's device info
// block: identity, version triple and the pseudo base addresses.
func AdapterInfo(s *usb.Server) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		ad, busID, devID, err := findAdapter(s, req.Params)
		if err != nil {
			return err
		}
		info := ad.Engine().Info()
		payload, err := json.Marshal(apitypes.AdapterInfoResponse{
			BusID:      busID,
			DevId:      devID,
			ID:         info.ID,
			Version:    info.Version,
			Revision:   info.Revision,
			Patchlevel: info.Patchlevel,
			MemBase:    info.MemBase,
			MMIOBase:   info.MMIOBase,
			IOPortBase: info.IOPortBase,
			PCIBase:    info.PCIBase,
			VRAMSize:   info.VRAMSize,
		})
		if err != nil {
			return apierror.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(payload)
		return nil
	}
}
