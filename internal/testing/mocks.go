package testing

import (
	"testing"

	"github.com/vuga-dev/vuga/device"
	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/usb"
)

type mockRegistration struct {
	deviceName  string
	handlerFunc api.StreamHandlerFunc

	createFunc func(o *device.CreateOptions) (usb.Device, error)
}

func (m *mockRegistration) CreateDevice(o *device.CreateOptions) (usb.Device, error) {
	return m.createFunc(o)
}

func (m *mockRegistration) StreamHandler() api.StreamHandlerFunc {
	return m.handlerFunc
}

func CreateMockRegistration(
	t *testing.T,
	name string,
	cf func(o *device.CreateOptions) (usb.Device, error),
	h api.StreamHandlerFunc,
) api.DeviceRegistration {
	t.Helper()
	return &mockRegistration{
		deviceName:  name,
		handlerFunc: h,
		createFunc:  cf,
	}
}
