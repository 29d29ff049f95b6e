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

// AdapterFault returns a handler toggling fault-injection behavior on a live
// adapter: strict VRAM bounds, the overflow sentinel, and clearing a tripped
// overflow latch.
func AdapterFault(s *usb.Server) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		ad, _, _, err := findAdapter(s, req.Params)
		if err != nil {
			return err
		}
		if req.Payload == "" {
			return apierror.ErrBadRequest("missing payload")
		}
		var fr apitypes.AdapterFaultRequest
		if err := json.Unmarshal([]byte(req.Payload), &fr); err != nil {
			return apierror.ErrBadRequest(fmt.Sprintf("invalid JSON payload: %v", err))
		}

		eng := ad.Engine()
		if fr.StrictBounds != nil {
			eng.SetStrictBounds(*fr.StrictBounds)
		}
		if fr.OverflowSentinel != nil {
			eng.SetOverflowSentinel(*fr.OverflowSentinel)
		}
		if fr.ClearOverflow {
			eng.ClearOverflow()
		}

		st := eng.State()
		payload, err := json.Marshal(struct {
			StrictBounds     bool `json:"strictBounds"`
			OverflowSentinel bool `json:"overflowSentinel"`
			Overflow         bool `json:"overflow"`
		}{st.StrictBounds, st.OverflowSentinel, st.Overflow})
		if err != nil {
			return apierror.ErrInternal(fmt.Sprintf("failed to marshal response: %v", err))
		}
		res.JSON = string(payload)
		return nil
	}
}
