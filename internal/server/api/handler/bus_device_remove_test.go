package handler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/internal/server/api/handler"
	"github.com/vuga-dev/vuga/internal/server/usb"
	handlerTest "github.com/vuga-dev/vuga/internal/testing"
	"github.com/vuga-dev/vuga/virtualbus"
)

func TestBusDeviceRemove(t *testing.T) {
	tests := []struct {
		name             string
		setup            func(t *testing.T, s *usb.Server)
		cmd              string
		expectedResponse string
	}{
		{
			name: "remove existing device",
			setup: func(t *testing.T, s *usb.Server) {
				b, err := virtualbus.NewWithBusId(90001)
				if err != nil {
					t.Fatalf("create bus failed: %v", err)
				}
				if err := s.AddBus(b); err != nil {
					t.Fatalf("add bus failed: %v", err)
				}
				addAdapter(t, b)
			},
			cmd:              "bus/90001/remove 1",
			expectedResponse: `{"busId":90001,"devId":"1"}`,
		},
		{
			name:             "remove from non-existing bus",
			setup:            nil,
			cmd:              "bus/90001/remove 1",
			expectedResponse: `{"status":404,"title":"Not Found","detail":"bus 90001 not found"}`,
		},
		{
			name: "remove non-existing device",
			setup: func(t *testing.T, s *usb.Server) {
				b, err := virtualbus.NewWithBusId(90002)
				if err != nil {
					t.Fatalf("create bus failed: %v", err)
				}
				if err := s.AddBus(b); err != nil {
					t.Fatalf("add bus failed: %v", err)
				}
			},
			cmd:              "bus/90002/remove 1",
			expectedResponse: `{"status":404,"title":"Not Found","detail":"device 1 not found on bus 90002"}`,
		},
		{
			name:             "invalid bus number",
			setup:            nil,
			cmd:              "bus/abc/remove 1",
			expectedResponse: `{"status":400,"title":"Bad Request","detail":"invalid busId: strconv.ParseUint: parsing \"abc\": invalid syntax"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, srv, done := handlerTest.StartAPIServer(t, func(r *api.Router, s *usb.Server, apiSrv *api.Server) {
				r.Register("bus/{id}/remove", handler.BusDeviceRemove(s))
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
