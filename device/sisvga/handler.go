package sisvga

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/vuga-dev/vuga/device"
	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/usb"
)

func init() {
	api.RegisterDevice("sisvga", &handler{})
	api.RegisterDevice("sisvga-fault", &faultHandler{})
}

type handler struct{}

func (h *handler) CreateDevice(o *device.CreateOptions) (usb.Device, error) { return New(o) }

func (h *handler) StreamHandler() api.StreamHandlerFunc { return streamEvents }

type faultHandler struct{}

func (h *faultHandler) CreateDevice(o *device.CreateOptions) (usb.Device, error) {
	return NewFault(o)
}

func (h *faultHandler) StreamHandler() api.StreamHandlerFunc { return streamEvents }

// streamEvents pushes the adapter's progress events to the client as JSON
// lines until the client hangs up.
func streamEvents(conn net.Conn, devPtr *usb.Device, logger *slog.Logger) error {
	if devPtr == nil || *devPtr == nil {
		return fmt.Errorf("nil device")
	}
	ad, ok := (*devPtr).(*Adapter)
	if !ok {
		return fmt.Errorf("device is not a sisvga adapter")
	}

	// The client never sends payload on an event stream; a read unblocking
	// means it went away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	enc := json.NewEncoder(conn)
	for {
		select {
		case <-closed:
			logger.Info("client disconnected")
			return nil
		case ev := <-ad.Events():
			if err := enc.Encode(ev); err != nil {
				logger.Info("client disconnected")
				return nil
			}
		}
	}
}
