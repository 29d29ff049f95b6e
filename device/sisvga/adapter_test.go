package sisvga_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuga-dev/vuga/device"
	"github.com/vuga-dev/vuga/device/sisvga"
	"github.com/vuga-dev/vuga/usbip"
)

func newTestAdapter(t *testing.T, opts sisvga.Options) *sisvga.Adapter {
	t.Helper()
	a, err := sisvga.NewWithOptions(opts, nil)
	require.NoError(t, err)
	t.Cleanup(a.Reset)
	return a
}

func TestNewRejectsOddVRAMSize(t *testing.T) {
	opts := sisvga.DefaultOptions()
	opts.VRAMSize = 6 << 20
	_, err := sisvga.NewWithOptions(opts, nil)
	assert.Error(t, err)

	opts.VRAMSize = 0
	_, err = sisvga.NewWithOptions(opts, nil)
	assert.Error(t, err)
}

func TestDescriptor(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	d := a.GetDescriptor()

	assert.Equal(t, uint16(sisvga.DefaultVID), d.Device.IDVendor)
	assert.Equal(t, uint16(sisvga.DefaultPID), d.Device.IDProduct)
	require.Len(t, d.Interfaces, 1)
	assert.Equal(t, uint8(0xFF), d.Interfaces[0].Descriptor.BInterfaceClass)
	assert.Len(t, d.Interfaces[0].Endpoints, 6)
}

func TestDescriptorIDOverride(t *testing.T) {
	vid := uint16(0x1234)
	pid := uint16(0x5678)
	a, err := sisvga.NewWithOptions(sisvga.DefaultOptions(), &device.CreateOptions{
		IdVendor:  &vid,
		IdProduct: &pid,
	})
	require.NoError(t, err)

	d := a.GetDescriptor()
	assert.Equal(t, vid, d.Device.IDVendor)
	assert.Equal(t, pid, d.Device.IDProduct)
}

func TestUnconfiguredTransfersDropped(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())

	pkt := sisvga.Packet{Header: sisvga.HeaderPCIConfig, Address: 0, Data: 1}
	assert.Nil(t, a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, pkt.Encode()))
	assert.Nil(t, a.HandleTransfer(sisvga.EpGfx, usbip.DirIn, nil))
}

func TestConfigureResetIdempotent(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())

	require.NoError(t, a.Configure())
	require.NoError(t, a.Configure())
	a.Reset()
	a.Reset()

	// A fresh configure brings the workers back.
	require.NoError(t, a.Configure())
	pkt := sisvga.Packet{Header: sisvga.HeaderPCIConfig, Address: 3, Data: 0xABCD}
	a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, pkt.Encode())
}

func TestRegisterReadWriteFlow(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	require.NoError(t, a.Configure())

	write := sisvga.Packet{Header: sisvga.HeaderPCIConfig, Address: 7, Data: 0x11223344}
	assert.Nil(t, a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, write.Encode()))

	read := sisvga.Packet{Header: sisvga.HeaderPCIConfig, Address: 7}
	assert.Nil(t, a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, read.Encode()[:6]))

	reply := a.HandleTransfer(sisvga.EpGfx, usbip.DirIn, nil)
	require.Len(t, reply, sisvga.PacketSize)
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, reply[:4])
}

func TestBridgeEndpointFlow(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	require.NoError(t, a.Configure())

	write := sisvga.Packet{Header: 0x001F, Address: 0x40, Data: 0xCAFE}
	a.HandleTransfer(sisvga.EpBridge, usbip.DirOut, write.Encode())

	read := sisvga.Packet{Header: 0x001F, Address: 0x40}
	a.HandleTransfer(sisvga.EpBridge, usbip.DirOut, read.Encode()[:6])

	reply := a.HandleTransfer(sisvga.EpBridge, usbip.DirIn, nil)
	require.Len(t, reply, sisvga.PacketSize)
	assert.Equal(t, []byte{0xFE, 0xCA, 0x00, 0x00}, reply[:4])
}

func TestBulkEndpointFlow(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	require.NoError(t, a.Configure())

	setup := []sisvga.Packet{
		{Header: 0x001F, Address: sisvga.RegSmallBulkAddr, Data: sisvga.VRAMBase + 0x2000},
		{Header: 0x001F, Address: sisvga.RegSmallBulkLen, Data: 4},
		{Header: 0x001F, Address: sisvga.RegSmallBulkFlags, Data: 1},
	}
	for _, p := range setup {
		a.HandleTransfer(sisvga.EpBridge, usbip.DirOut, p.Encode())
	}

	a.HandleTransfer(sisvga.EpSmallBulk, usbip.DirOut, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	select {
	case ev := <-a.Events():
		assert.Equal(t, sisvga.EventBulkDone, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("bulk completion event not published")
	}

	var got [4]byte
	assert.True(t, a.Engine().VRAMReadAt(0x2000, got[:]))
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, got[:])
}

func TestShortTransferDropped(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	require.NoError(t, a.Configure())

	a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, []byte{0x1F, 0x00})

	// The dropped transfer produces no reply; a following read still works.
	read := sisvga.Packet{Header: sisvga.HeaderPCIConfig, Address: 0}
	a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, read.Encode()[:6])
	reply := a.HandleTransfer(sisvga.EpGfx, usbip.DirIn, nil)
	require.Len(t, reply, sisvga.PacketSize)
}

func TestFrameDetectionThroughAdapter(t *testing.T) {
	a := newTestAdapter(t, sisvga.DefaultOptions())
	require.NoError(t, a.Configure())

	corner := sisvga.Packet{Header: 0x000C, Address: sisvga.BeaconAddress, Data: sisvga.BeaconData}
	a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, corner.Encode())
	a.HandleTransfer(sisvga.EpGfx, usbip.DirOut, corner.Encode())

	select {
	case <-a.Frame().Done():
	case <-time.After(time.Second):
		t.Fatal("frame not detected")
	}
	assert.Equal(t, 2, a.Frame().Hits())
}
