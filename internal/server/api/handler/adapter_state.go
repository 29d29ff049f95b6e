package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vuga-dev/vuga/apitypes"
	"github.com/vuga-dev/vuga/device/sisvga"
	"github.com/vuga-dev/vuga/internal/server/api"
	apierror "github.com/vuga-dev/vuga/internal/server/api/error"
	"github.com/vuga-dev/vuga/internal/server/usb"
)

// findAdapter resolves a graphics adapter by bus and device number.
func findAdapter(s *usb.Server, params map[string]string) (*sisvga.Adapter, uint32, string, error) {
	idStr, ok := params["id"]
	if !ok {
		return nil, 0, "", apierror.ErrBadRequest("missing id parameter")
	}
	busID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return nil, 0, "", apierror.ErrBadRequest(fmt.Sprintf("invalid busId: %v", err))
	}
	devStr, ok := params["dev"]
	if !ok {
		return nil, 0, "", apierror.ErrBadRequest("missing dev parameter")
	}
	b := s.GetBus(uint32(busID))
	if b == nil {
		return nil, 0, "", apierror.ErrNotFound(fmt.Sprintf("bus %d not found", busID))
	}
	for _, m := range b.GetAllDeviceMetas() {
		if fmt.Sprintf("%d", m.Meta.DevId) != devStr {
			continue
		}
		ad, ok := m.Dev.(*sisvga.Adapter)
		if !ok {
			return nil, 0, "", apierror.ErrBadRequest(fmt.Sprintf("device %s is not a graphics adapter", devStr))
		}
		return ad, uint32(busID), devStr, nil
	}
	return nil, 0, "", apierror.ErrNotFound(fmt.Sprintf("device %s not found on bus %d", devStr, busID))
}

// AdapterState returns a handler reporting a graphics adapter's memory
// configuration, bulk transfer state and fault status.
func AdapterState(s *usb.Server) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		ad, busID, devID, err := findAdapter(s, req.Params)
		if err != nil {
			return err
		}
		st := ad.Engine().State()
		payload, err := json.Marshal(apitypes.AdapterStateResponse{
			BusID:            busID,
			DevId:            devID,
			VRAMSize:         st.VRAMSize,
			AdvertisedVRAM:   st.AdvertisedVRAM,
			RAMType:          st.RAMType,
			Topology:         st.Topology,
			StrictBounds:     st.StrictBounds,
			OverflowSentinel: st.OverflowSentinel,
			Overflow:         st.Overflow,
			FrameHits:        ad.Frame().Hits(),
			Bulk: apitypes.BulkStateInfo{
				Target:     st.Bulk.Target,
				Remaining:  st.Bulk.Remaining,
				Flags:      st.Bulk.Flags,
				Configured: st.Bulk.Configured,
			},
		})
		if err != nil {
			return apierror.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(payload)
		return nil
	}
}
