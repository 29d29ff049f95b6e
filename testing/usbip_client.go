package testing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vuga-dev/vuga/usbip"
)

type TestUsbIpClient struct {
	address string
	seq     uint32
}

type Device struct {
	Path       string
	BusID      string
	BusNum     uint32
	DeviceNum  uint32
	Speed      uint32
	IDVendor   uint16
	IDProduct  uint16
	BcdDevice  uint16
	Class      uint8
	SubClass   uint8
	Protocol   uint8
	ConfigVal  uint8
	NumConfigs uint8
	NumIfaces  uint8
	Interfaces []usbip.InterfaceDesc
}

type ImportResult struct {
	Conn          net.Conn
	Exported      Device
	RawDescriptor []byte
}

func NewUsbIpClient(t *testing.T, addr string) *TestUsbIpClient {
	t.Helper()

	return &TestUsbIpClient{
		address: addr,
	}
}

func (c *TestUsbIpClient) nextSeq() uint32 {
	// USBIP seqnum only needs to be unique within the session; tests use a single
	// client per test and the server doesn't require a specific starting value.
	return atomic.AddUint32(&c.seq, 1) - 1
}

func (c *TestUsbIpClient) ListDevices() ([]Device, error) {
	conn, err := net.Dial("tcp", c.address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := (&usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqDevlist}).Write(conn); err != nil {
		return nil, err
	}

	var hdr [12]byte
	if err := usbip.ReadExactly(conn, hdr[:]); err != nil {
		return nil, err
	}

	if v := binary.BigEndian.Uint16(hdr[0:2]); v != usbip.Version {
		return nil, fmt.Errorf("unexpected usbip version %x", v)
	}
	if cmd := binary.BigEndian.Uint16(hdr[2:4]); cmd != usbip.OpRepDevlist {
		return nil, fmt.Errorf("unexpected reply command %x", cmd)
	}

	n := binary.BigEndian.Uint32(hdr[8:12])
	devices := make([]Device, 0, n)
	for i := uint32(0); i < n; i++ {
		dev, err := readExportedDevice(conn)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

func (c *TestUsbIpClient) AttachDevice(busID string) (*ImportResult, error) {
	conn, err := net.Dial("tcp", c.address)
	if err != nil {
		return nil, err
	}

	if err := (&usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}).Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	var bus [32]byte
	copy(bus[:], busID)
	if _, err := conn.Write(bus[:]); err != nil {
		conn.Close()
		return nil, err
	}

	var hdr [8]byte
	if err := usbip.ReadExactly(conn, hdr[:]); err != nil {
		conn.Close()
		return nil, err
	}
	if v := binary.BigEndian.Uint16(hdr[0:2]); v != usbip.Version {
		conn.Close()
		return nil, fmt.Errorf("unexpected usbip version %x", v)
	}
	if cmd := binary.BigEndian.Uint16(hdr[2:4]); cmd != usbip.OpRepImport {
		conn.Close()
		return nil, fmt.Errorf("unexpected reply command %x", cmd)
	}

	dev, raw, err := readExportedDeviceImportWithRaw(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &ImportResult{Conn: conn, Exported: dev, RawDescriptor: raw}, nil
}

func readExportedDevice(r net.Conn) (Device, error) {
	dev, _, err := readExportedDeviceWithRaw(r)
	return dev, err
}

func readExportedDeviceImportWithRaw(r net.Conn) (Device, []byte, error) {
	return readExportedDeviceWithRawInternal(r, false)
}

func readExportedDeviceWithRaw(r net.Conn) (Device, []byte, error) {
	return readExportedDeviceWithRawInternal(r, true)
}

func readExportedDeviceWithRawInternal(r net.Conn, readIfaces bool) (Device, []byte, error) {
	var base [312]byte
	if err := usbip.ReadExactly(r, base[:]); err != nil {
		return Device{}, nil, err
	}

	pathField := base[0:256]
	busField := base[256:288]

	pathEnd := bytes.IndexByte(pathField, 0)
	if pathEnd == -1 {
		pathEnd = len(pathField)
	}
	busEnd := bytes.IndexByte(busField, 0)
	if busEnd == -1 {
		busEnd = len(busField)
	}

	busNum := binary.BigEndian.Uint32(base[288:292])
	devNum := binary.BigEndian.Uint32(base[292:296])
	speed := binary.BigEndian.Uint32(base[296:300])
	idVendor := binary.BigEndian.Uint16(base[300:302])
	idProduct := binary.BigEndian.Uint16(base[302:304])
	bcdDevice := binary.BigEndian.Uint16(base[304:306])
	class := base[306]
	subClass := base[307]
	proto := base[308]
	confVal := base[309]
	nConf := base[310]
	nIf := base[311]

	ifaces := make([]usbip.InterfaceDesc, 0, nIf)
	if readIfaces && nIf > 0 {
		ifaceBuf := make([]byte, int(nIf)*4)
		if err := usbip.ReadExactly(r, ifaceBuf); err != nil {
			return Device{}, nil, err
		}
		for i := 0; i < int(nIf); i++ {
			o := i * 4
			ifaces = append(ifaces, usbip.InterfaceDesc{
				Class:    ifaceBuf[o],
				SubClass: ifaceBuf[o+1],
				Protocol: ifaceBuf[o+2],
			})
		}
	}

	return Device{
		Path:       string(pathField[:pathEnd]),
		BusID:      string(busField[:busEnd]),
		BusNum:     busNum,
		DeviceNum:  devNum,
		Speed:      speed,
		IDVendor:   idVendor,
		IDProduct:  idProduct,
		BcdDevice:  bcdDevice,
		Class:      class,
		SubClass:   subClass,
		Protocol:   proto,
		ConfigVal:  confVal,
		NumConfigs: nConf,
		NumIfaces:  nIf,
		Interfaces: ifaces,
	}, base[:], nil
}

func (c *TestUsbIpClient) Submit(conn net.Conn, dir uint32, ep uint32, outPayload []byte, setup *[8]byte) error {
	_, err := c.SubmitWithTimeout(conn, dir, ep, outPayload, setup, 0, 750*time.Millisecond)
	return err
}

// SubmitIn issues an IN transfer on the given endpoint and returns the data
// the device produced. Blocks until the device has a reply queued.
func (c *TestUsbIpClient) SubmitIn(conn net.Conn, ep uint32, length uint32) ([]byte, error) {
	return c.SubmitWithTimeout(conn, usbip.DirIn, ep, nil, nil, length, 750*time.Millisecond)
}

func (c *TestUsbIpClient) SubmitWithTimeout(conn net.Conn, dir uint32, ep uint32, outPayload []byte, setup *[8]byte, inLen uint32, timeout time.Duration) ([]byte, error) {
	if conn == nil {
		return nil, io.ErrUnexpectedEOF
	}

	var setupBytes [8]byte
	if setup != nil {
		setupBytes = *setup
	}

	bufLen := uint32(len(outPayload))
	if dir == usbip.DirIn {
		bufLen = inLen
	}

	cur := c.nextSeq()

	cmd := usbip.CmdSubmit{
		Basic:             usbip.HeaderBasic{Command: usbip.CmdSubmitCode, Seqnum: cur, Devid: 0, Dir: dir, Ep: ep},
		TransferFlags:     0,
		TransferBufferLen: bufLen,
		StartFrame:        0,
		NumberOfPackets:   0,
		Interval:          0,
		Setup:             setupBytes,
	}

	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := cmd.Write(conn); err != nil {
		return nil, err
	}
	if dir == usbip.DirOut && len(outPayload) > 0 {
		if _, err := conn.Write(outPayload); err != nil {
			return nil, err
		}
	}

	var retHdr [48]byte
	if err := usbip.ReadExactly(conn, retHdr[:]); err != nil {
		return nil, err
	}
	if gotCmd := binary.BigEndian.Uint32(retHdr[0:4]); gotCmd != usbip.RetSubmitCode {
		return nil, fmt.Errorf("unexpected ret cmd %x", gotCmd)
	}
	status := int32(binary.BigEndian.Uint32(retHdr[20:24]))
	actual := binary.BigEndian.Uint32(retHdr[24:28])
	if status != 0 {
		return nil, fmt.Errorf("ret status %d", status)
	}

	var data []byte
	if dir == usbip.DirIn && actual > 0 {
		data = make([]byte, int(actual))
		if err := usbip.ReadExactly(conn, data); err != nil {
			return nil, err
		}
	}
	_ = conn.SetDeadline(time.Time{})
	return data, nil
}

// ControlIn performs an EP0 IN control transfer (e.g. GET_DESCRIPTOR) and
// returns the response payload.
func (c *TestUsbIpClient) ControlIn(conn net.Conn, bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16) ([]byte, error) {
	var setup [8]byte
	setup[0] = bmRequestType
	setup[1] = bRequest
	binary.LittleEndian.PutUint16(setup[2:4], wValue)
	binary.LittleEndian.PutUint16(setup[4:6], wIndex)
	binary.LittleEndian.PutUint16(setup[6:8], wLength)
	return c.SubmitWithTimeout(conn, usbip.DirIn, 0, nil, &setup, uint32(wLength), 750*time.Millisecond)
}

// ControlOut performs an EP0 OUT control transfer with no data stage
// (e.g. SET_CONFIGURATION).
func (c *TestUsbIpClient) ControlOut(conn net.Conn, bmRequestType, bRequest uint8, wValue, wIndex uint16) error {
	var setup [8]byte
	setup[0] = bmRequestType
	setup[1] = bRequest
	binary.LittleEndian.PutUint16(setup[2:4], wValue)
	binary.LittleEndian.PutUint16(setup[4:6], wIndex)
	_, err := c.SubmitWithTimeout(conn, usbip.DirOut, 0, nil, &setup, 0, 750*time.Millisecond)
	return err
}

// SetConfiguration selects the device configuration; value 0 returns the
// device to the unconfigured state.
func (c *TestUsbIpClient) SetConfiguration(conn net.Conn, value uint16) error {
	return c.ControlOut(conn, 0x00, 0x09, value, 0)
}

// RegisterExchange writes a register access packet on an OUT endpoint and
// reads the 10-byte reply from the matching IN endpoint.
func (c *TestUsbIpClient) RegisterExchange(conn net.Conn, ep uint32, packet []byte) ([]byte, error) {
	if err := c.Submit(conn, usbip.DirOut, ep, packet, nil); err != nil {
		return nil, err
	}
	return c.SubmitIn(conn, ep, 10)
}
