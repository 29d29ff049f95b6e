package api_test

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuga-dev/vuga/device"
	"github.com/vuga-dev/vuga/device/sisvga"
	"github.com/vuga-dev/vuga/internal/server/api"
	"github.com/vuga-dev/vuga/internal/server/api/auth"
	srvusb "github.com/vuga-dev/vuga/internal/server/usb"
	th "github.com/vuga-dev/vuga/internal/testing"
	pusb "github.com/vuga-dev/vuga/usb"
	"github.com/vuga-dev/vuga/virtualbus"
)

func TestAPIServer_UnknownPath(t *testing.T) {
	addr, _, done := th.StartAPIServer(t, nil)
	defer done()

	line := th.ExecCmd(t, addr, "does/not/exist")
	assert.JSONEq(t, `{"status":404,"title":"Not Found","detail":"unknown path: does/not/exist"}`, line)
}

func TestAPIServer_EmptyRequest(t *testing.T) {
	addr, _, done := th.StartAPIServer(t, nil)
	defer done()

	line := th.ExecCmd(t, addr, "")
	assert.JSONEq(t, `{"status":400,"title":"Bad Request","detail":"empty request"}`, line)
}

func TestAPIServer_StreamHandlerError_ClosesConn(t *testing.T) {
	cfg := srvusb.ServerConfig{Addr: "127.0.0.1:0"}
	usbSrv := srvusb.New(cfg, slog.Default(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	apiSrv, err := api.New(usbSrv, addr, api.ServerConfig{Addr: addr}, slog.Default())
	require.NoError(t, err)
	r := apiSrv.Router()
	r.RegisterStream("bus/{busId}/{deviceid}", api.DeviceStreamHandler(usbSrv))
	require.NoError(t, apiSrv.Start())
	defer apiSrv.Close()

	bus, err := virtualbus.NewWithBusId(70002)
	require.NoError(t, err)
	require.NoError(t, usbSrv.AddBus(bus))
	dev, err := sisvga.New(nil)
	require.NoError(t, err)
	_, err = bus.Add(dev)
	require.NoError(t, err)

	var devID string
	metas := bus.GetAllDeviceMetas()
	require.Greater(t, len(metas), 0)
	for _, m := range metas {
		devID = fmt.Sprintf("%d", m.Meta.DevId)
	}
	require.NotEmpty(t, devID)

	sentinel := fmt.Errorf("boom")
	mr := th.CreateMockRegistration(t, "sisvga",
		func(o *device.CreateOptions) (pusb.Device, error) { return sisvga.New(o) },
		func(conn net.Conn, d *pusb.Device, l *slog.Logger) error { return sentinel },
	)

	api.RegisterDevice("sisvga", mr)
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = fmt.Fprintf(c, "bus/%d/%s\x00", bus.BusID(), devID)
	require.NoError(t, err)

	buf := make([]byte, 1)
	_ = c.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, readErr := c.Read(buf)
	require.Error(t, readErr)
	_ = c.Close()
}

func TestAPIServer_PasswordRejectsPlaintext(t *testing.T) {
	cfg := srvusb.ServerConfig{Addr: "127.0.0.1:0"}
	usbSrv := srvusb.New(cfg, slog.Default(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	apiSrv, err := api.New(usbSrv, addr, api.ServerConfig{Addr: addr, Password: "hunter2"}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, apiSrv.Start())
	defer apiSrv.Close()

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = fmt.Fprintf(c, "buses\x00")
	require.NoError(t, err)

	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":401,"title":"Unauthorized","detail":"authentication required"}`, line)
}

func TestAPIServer_AuthenticatedSession(t *testing.T) {
	cfg := srvusb.ServerConfig{Addr: "127.0.0.1:0"}
	usbSrv := srvusb.New(cfg, slog.Default(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	apiSrv, err := api.New(usbSrv, addr, api.ServerConfig{Addr: addr, Password: "hunter2"}, slog.Default())
	require.NoError(t, err)
	apiSrv.Router().Register("ping", func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		res.JSON = `{"pong":true}`
		return nil
	})
	require.NoError(t, apiSrv.Start())
	defer apiSrv.Close()

	key, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	r := bufio.NewReader(c)
	clientNonce, serverNonce, err := auth.HandleAuthHandshake(r, c, key, true)
	require.NoError(t, err)

	sessionKey, err := auth.DeriveSessionKey(key, serverNonce, clientNonce)
	require.NoError(t, err)
	sc, err := auth.WrapConn(c, sessionKey, true)
	require.NoError(t, err)

	_, err = fmt.Fprintf(sc, "ping\x00")
	require.NoError(t, err)

	line, err := bufio.NewReader(sc).ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"pong":true}`, line)
}

func TestAPIServer_WrongPasswordRejected(t *testing.T) {
	cfg := srvusb.ServerConfig{Addr: "127.0.0.1:0"}
	usbSrv := srvusb.New(cfg, slog.Default(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	apiSrv, err := api.New(usbSrv, addr, api.ServerConfig{Addr: addr, Password: "hunter2"}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, apiSrv.Start())
	defer apiSrv.Close()

	key, err := auth.DeriveKey("letmein")
	require.NoError(t, err)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	r := bufio.NewReader(c)
	_, _, err = auth.HandleAuthHandshake(r, c, key, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid password")
}
