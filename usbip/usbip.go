// Package usbip implements the subset of the USB/IP wire protocol needed to
// export emulated devices to a host's vhci driver: the devlist/import
// management ops and the URB submit/unlink stream.
package usbip

import (
	"encoding/binary"
	"io"
)

// Wire constants (network byte order / big-endian)
const (
	Version = 0x0111

	// Management commands
	OpReqDevlist = 0x8005
	OpRepDevlist = 0x0005
	OpReqImport  = 0x8003
	OpRepImport  = 0x0003

	// URB transfer commands
	CmdSubmitCode = 0x00000001
	CmdUnlinkCode = 0x00000002
	RetSubmitCode = 0x00000003
	RetUnlinkCode = 0x00000004

	// Directions used in usbip_header_basic.direction
	DirOut = 0x00000000
	DirIn  = 0x00000001

	// Every URB command and reply header is 0x30 bytes on the wire.
	URBHeaderSize = 0x30
)

// MgmtHeader is the 8-byte header for management ops (devlist/import).
type MgmtHeader struct {
	Version uint16
	Command uint16
	Status  uint32
}

func (h *MgmtHeader) Write(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], h.Command)
	binary.BigEndian.PutUint32(buf[4:8], h.Status)
	_, err := w.Write(buf[:])
	return err
}

// DevListReplyHeader follows the MgmtHeader in OP_REP_DEVLIST and carries
// the number of exported devices.
type DevListReplyHeader struct {
	NDevices uint32
}

func (h *DevListReplyHeader) Write(w io.Writer) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], h.NDevices)
	_, err := w.Write(buf[:])
	return err
}

// ExportMeta carries USB/IP bus identity for an emulated device.
// Uses fixed-size arrays matching the wire protocol format.
type ExportMeta struct {
	Path     [256]byte
	USBBusId [32]byte
	BusId    uint32
	DevId    uint32
}

// ExportedDevice describes one exported device in devlist/import replies.
// Strings are fixed-size, remaining numbers are big-endian.
type ExportedDevice struct {
	ExportMeta
	Speed uint32

	IDVendor            uint16
	IDProduct           uint16
	BcdDevice           uint16
	BDeviceClass        uint8
	BDeviceSubClass     uint8
	BDeviceProtocol     uint8
	BConfigurationValue uint8
	BNumConfigurations  uint8
	BNumInterfaces      uint8

	// One triplet per interface: class, subclass, protocol (devlist only).
	Interfaces []InterfaceDesc
}

type InterfaceDesc struct {
	Class    uint8
	SubClass uint8
	Protocol uint8
}

// writeFixed emits the fixed-layout part shared by devlist and import replies.
func (d *ExportedDevice) writeFixed(w io.Writer) error {
	if _, err := w.Write(d.Path[:]); err != nil {
		return err
	}
	if _, err := w.Write(d.USBBusId[:]); err != nil {
		return err
	}
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], d.BusId)
	binary.BigEndian.PutUint32(buf[4:8], d.DevId)
	binary.BigEndian.PutUint32(buf[8:12], d.Speed)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	var ids [6]byte
	binary.BigEndian.PutUint16(ids[0:2], d.IDVendor)
	binary.BigEndian.PutUint16(ids[2:4], d.IDProduct)
	binary.BigEndian.PutUint16(ids[4:6], d.BcdDevice)
	if _, err := w.Write(ids[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte{
		d.BDeviceClass,
		d.BDeviceSubClass,
		d.BDeviceProtocol,
		d.BConfigurationValue,
		d.BNumConfigurations,
		d.BNumInterfaces,
	})
	return err
}

// WriteDevlist writes the device entry for OP_REP_DEVLIST (includes interface triplets).
func (d *ExportedDevice) WriteDevlist(w io.Writer) error {
	if err := d.writeFixed(w); err != nil {
		return err
	}
	for _, iface := range d.Interfaces {
		if _, err := w.Write([]byte{iface.Class, iface.SubClass, iface.Protocol, 0}); err != nil {
			return err
		}
	}
	return nil
}

// WriteImport writes the device entry for OP_REP_IMPORT (ends at bNumInterfaces).
func (d *ExportedDevice) WriteImport(w io.Writer) error {
	return d.writeFixed(w)
}

// HeaderBasic is common to all URB cmds and replies.
type HeaderBasic struct {
	Command uint32
	Seqnum  uint32
	Devid   uint32
	Dir     uint32
	Ep      uint32
}

func (h *HeaderBasic) put(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], h.Command)
	binary.BigEndian.PutUint32(buf[4:8], h.Seqnum)
	binary.BigEndian.PutUint32(buf[8:12], h.Devid)
	binary.BigEndian.PutUint32(buf[12:16], h.Dir)
	binary.BigEndian.PutUint32(buf[16:20], h.Ep)
}

func (h *HeaderBasic) parse(buf []byte) {
	h.Command = binary.BigEndian.Uint32(buf[0:4])
	h.Seqnum = binary.BigEndian.Uint32(buf[4:8])
	h.Devid = binary.BigEndian.Uint32(buf[8:12])
	h.Dir = binary.BigEndian.Uint32(buf[12:16])
	h.Ep = binary.BigEndian.Uint32(buf[16:20])
}

// CmdSubmit header (before payload), 0x30 bytes.
type CmdSubmit struct {
	Basic             HeaderBasic
	TransferFlags     uint32
	TransferBufferLen uint32
	StartFrame        uint32
	NumberOfPackets   uint32
	Interval          uint32
	Setup             [8]byte
}

func (c *CmdSubmit) Write(w io.Writer) error {
	var buf [URBHeaderSize]byte
	c.Basic.put(buf[0:20])
	binary.BigEndian.PutUint32(buf[20:24], c.TransferFlags)
	binary.BigEndian.PutUint32(buf[24:28], c.TransferBufferLen)
	binary.BigEndian.PutUint32(buf[28:32], c.StartFrame)
	binary.BigEndian.PutUint32(buf[32:36], c.NumberOfPackets)
	binary.BigEndian.PutUint32(buf[36:40], c.Interval)
	copy(buf[40:48], c.Setup[:])
	_, err := w.Write(buf[:])
	return err
}

// ParseCmdSubmit decodes a CMD_SUBMIT header from a raw 0x30-byte buffer.
func ParseCmdSubmit(buf []byte) CmdSubmit {
	var c CmdSubmit
	c.Basic.parse(buf[0:20])
	c.TransferFlags = binary.BigEndian.Uint32(buf[20:24])
	c.TransferBufferLen = binary.BigEndian.Uint32(buf[24:28])
	c.StartFrame = binary.BigEndian.Uint32(buf[28:32])
	c.NumberOfPackets = binary.BigEndian.Uint32(buf[32:36])
	c.Interval = binary.BigEndian.Uint32(buf[36:40])
	copy(c.Setup[:], buf[40:48])
	return c
}

// RetSubmit header (before payload), 0x30 bytes.
type RetSubmit struct {
	Basic           HeaderBasic
	Status          int32
	ActualLength    uint32
	StartFrame      uint32
	NumberOfPackets uint32
	ErrorCount      uint32
	Padding         [8]byte
}

func (r *RetSubmit) Write(w io.Writer) error {
	var buf [URBHeaderSize]byte
	r.Basic.put(buf[0:20])
	binary.BigEndian.PutUint32(buf[20:24], uint32(r.Status))
	binary.BigEndian.PutUint32(buf[24:28], r.ActualLength)
	binary.BigEndian.PutUint32(buf[28:32], r.StartFrame)
	binary.BigEndian.PutUint32(buf[32:36], r.NumberOfPackets)
	binary.BigEndian.PutUint32(buf[36:40], r.ErrorCount)
	copy(buf[40:48], r.Padding[:])
	_, err := w.Write(buf[:])
	return err
}

// CmdUnlink asks the device to cancel a previously submitted URB.
type CmdUnlink struct {
	Basic        HeaderBasic
	UnlinkSeqnum uint32
	Padding      [24]byte
}

func (c *CmdUnlink) Write(w io.Writer) error {
	var buf [URBHeaderSize]byte
	c.Basic.put(buf[0:20])
	binary.BigEndian.PutUint32(buf[20:24], c.UnlinkSeqnum)
	copy(buf[24:48], c.Padding[:])
	_, err := w.Write(buf[:])
	return err
}

// RetUnlink acknowledges a CMD_UNLINK.
type RetUnlink struct {
	Basic   HeaderBasic
	Status  int32
	Padding [24]byte
}

func (r *RetUnlink) Write(w io.Writer) error {
	var buf [URBHeaderSize]byte
	r.Basic.put(buf[0:20])
	binary.BigEndian.PutUint32(buf[20:24], uint32(r.Status))
	copy(buf[24:48], r.Padding[:])
	_, err := w.Write(buf[:])
	return err
}

// ReadExactly fills buf completely or returns the first read error.
func ReadExactly(r io.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}
