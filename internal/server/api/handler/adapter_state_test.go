package handler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuga-dev/vuga/device/sisvga"
	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/internal/server/api/handler"
	"github.com/vuga-dev/vuga/internal/server/usb"
	handlerTest "github.com/vuga-dev/vuga/internal/testing"
	"github.com/vuga-dev/vuga/virtualbus"
)

func setupAdapterBus(t *testing.T, s *usb.Server, busID uint32, fault bool) *sisvga.Adapter {
	t.Helper()
	b, err := virtualbus.NewWithBusId(busID)
	if err != nil {
		t.Fatalf("create bus failed: %v", err)
	}
	if err := s.AddBus(b); err != nil {
		t.Fatalf("add bus failed: %v", err)
	}
	opts := sisvga.DefaultOptions()
	if fault {
		opts = sisvga.FaultOptions()
	}
	ad, err := sisvga.NewWithOptions(opts, nil)
	if err != nil {
		t.Fatalf("create adapter failed: %v", err)
	}
	if _, err := b.Add(ad); err != nil {
		t.Fatalf("add adapter failed: %v", err)
	}
	return ad
}

func TestAdapterState(t *testing.T) {
	tests := []struct {
		name             string
		setup            func(t *testing.T, s *usb.Server)
		cmd              string
		expectedResponse string
	}{
		{
			name: "stock adapter",
			setup: func(t *testing.T, s *usb.Server) {
				setupAdapterBus(t, s, 50001, false)
			},
			cmd: "bus/50001/1/state",
			expectedResponse: `{"busId":50001,"devId":"1","vramSize":8388608,"advertisedVram":6291456,
				"ramType":3,"topology":2,"strictBounds":false,"overflowSentinel":false,"overflow":false,
				"frameHits":0,"bulk":{"target":0,"remaining":0,"flags":0,"configured":false}}`,
		},
		{
			name: "fault adapter",
			setup: func(t *testing.T, s *usb.Server) {
				setupAdapterBus(t, s, 50002, true)
			},
			cmd: "bus/50002/1/state",
			expectedResponse: `{"busId":50002,"devId":"1","vramSize":8388608,"advertisedVram":1073741824,
				"ramType":1,"topology":0,"strictBounds":false,"overflowSentinel":true,"overflow":false,
				"frameHits":0,"bulk":{"target":0,"remaining":0,"flags":0,"configured":false}}`,
		},
		{
			name:             "missing bus",
			setup:            nil,
			cmd:              "bus/59999/1/state",
			expectedResponse: `{"status":404,"title":"Not Found","detail":"bus 59999 not found"}`,
		},
		{
			name: "missing device",
			setup: func(t *testing.T, s *usb.Server) {
				b, err := virtualbus.NewWithBusId(50003)
				if err != nil {
					t.Fatalf("create bus failed: %v", err)
				}
				if err := s.AddBus(b); err != nil {
					t.Fatalf("add bus failed: %v", err)
				}
			},
			cmd:              "bus/50003/1/state",
			expectedResponse: `{"status":404,"title":"Not Found","detail":"device 1 not found on bus 50003"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, srv, done := handlerTest.StartAPIServer(t, func(r *api.Router, s *usb.Server, apiSrv *api.Server) {
				r.Register("bus/{id}/{dev}/state", handler.AdapterState(s))
			})
			defer done()

			if tt.setup != nil {
				tt.setup(t, srv)
			}
			line := handlerTest.ExecCmd(t, addr, tt.cmd)
			assert.JSONEq(t, tt.expectedResponse, line)
		})
	}
}

func TestAdapterStateReflectsBulkConfig(t *testing.T) {
	addr, srv, done := handlerTest.StartAPIServer(t, func(r *api.Router, s *usb.Server, apiSrv *api.Server) {
		r.Register("bus/{id}/{dev}/state", handler.AdapterState(s))
	})
	defer done()

	ad := setupAdapterBus(t, srv, 50010, false)
	eng := ad.Engine()
	eng.ApplyBridge(sisvga.Packet{Header: 0x001F, Address: sisvga.RegSmallBulkAddr, Data: sisvga.VRAMBase + 0x400}, false)
	eng.ApplyBridge(sisvga.Packet{Header: 0x001F, Address: sisvga.RegSmallBulkLen, Data: 0x80}, false)
	eng.ApplyBridge(sisvga.Packet{Header: 0x001F, Address: sisvga.RegSmallBulkFlags, Data: 1}, false)

	line := handlerTest.ExecCmd(t, addr, "bus/50010/1/state")
	assert.Contains(t, line, `"configured":true`)
	assert.Contains(t, line, `"remaining":128`)
}
