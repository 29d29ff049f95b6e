package sisvga_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vuga-dev/vuga/device/sisvga"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		ok     bool
		packet sisvga.Packet
	}{
		{
			name: "short buffer dropped",
			buf:  []byte{0x1F, 0x00, 0x10},
			ok:   false,
		},
		{
			name:   "read request carries header and address only",
			buf:    []byte{0x1F, 0x00, 0x10, 0x02, 0x00, 0x00},
			ok:     true,
			packet: sisvga.Packet{Header: 0x001F, Address: 0x00000210},
		},
		{
			name:   "write request carries the data word",
			buf:    []byte{0x8F, 0x00, 0x04, 0x00, 0x00, 0x00, 0x78, 0x56, 0x34, 0x12},
			ok:     true,
			packet: sisvga.Packet{Header: 0x008F, Address: 0x00000004, Data: 0x12345678},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := sisvga.Decode(tt.buf)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.packet, p)
			}
		})
	}
}

func TestIsRead(t *testing.T) {
	assert.True(t, sisvga.IsRead(6))
	assert.False(t, sisvga.IsRead(10))
	assert.False(t, sisvga.IsRead(8))
}

func TestEncodeRoundTrip(t *testing.T) {
	p := sisvga.Packet{Header: 0x004F, Address: 0xD0001234, Data: 0xCAFEBABE}
	buf := p.Encode()
	assert.Len(t, buf, sisvga.PacketSize)

	got, ok := sisvga.Decode(buf)
	assert.True(t, ok)
	assert.Equal(t, p, got)
}

func TestEncodeReply(t *testing.T) {
	buf := sisvga.EncodeReply(0xAABBCCDD)
	assert.Equal(t, []byte{0xDD, 0xCC, 0xBB, 0xAA, 0, 0, 0, 0, 0, 0}, buf)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		header uint16
		want   sisvga.Access
	}{
		{
			name:   "pci config header",
			header: sisvga.HeaderPCIConfig,
			want:   sisvga.Access{Class: sisvga.AccessPCIConfig},
		},
		{
			name:   "vram all lanes",
			header: 0x000F,
			want:   sisvga.Access{Class: sisvga.AccessVRAM, LaneMask: 0x0F},
		},
		{
			name:   "vram upper lanes",
			header: 0x000C,
			want:   sisvga.Access{Class: sisvga.AccessVRAM, LaneMask: 0x0C},
		},
		{
			name:   "io lane 0",
			header: 0x0041,
			want:   sisvga.Access{Class: sisvga.AccessIOReg, LaneOffset: 0},
		},
		{
			name:   "io lane 1",
			header: 0x0042,
			want:   sisvga.Access{Class: sisvga.AccessIOReg, LaneOffset: 1},
		},
		{
			name:   "io lane 2",
			header: 0x0044,
			want:   sisvga.Access{Class: sisvga.AccessIOReg, LaneOffset: 2},
		},
		{
			name:   "io lane 3",
			header: 0x0048,
			want:   sisvga.Access{Class: sisvga.AccessIOReg, LaneOffset: 3},
		},
		{
			name:   "unknown type bits",
			header: 0x0080,
			want:   sisvga.Access{Class: sisvga.AccessUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sisvga.Classify(tt.header))
		})
	}
}
