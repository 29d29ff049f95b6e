package sisvga

import "encoding/binary"

// Packet is the fixed little-endian request exchanged on the gfx and bridge
// endpoints: a 16-bit header followed by a 32-bit address and a 32-bit data
// word. Read requests omit the data word on the wire.
type Packet struct {
	Header  uint16
	Address uint32
	Data    uint32
}

const (
	// PacketSize is the full wire size of a write request or a reply.
	PacketSize = 10
	// readRequestSize is the truncated form that denotes a read request.
	readRequestSize = 6
)

// Decode parses a packet from a raw transfer buffer. Buffers shorter than
// six bytes carry no usable request; the caller drops them without reply.
func Decode(buf []byte) (Packet, bool) {
	if len(buf) < readRequestSize {
		return Packet{}, false
	}
	p := Packet{
		Header:  binary.LittleEndian.Uint16(buf[0:2]),
		Address: binary.LittleEndian.Uint32(buf[2:6]),
	}
	if len(buf) >= PacketSize {
		p.Data = binary.LittleEndian.Uint32(buf[6:10])
	}
	return p, true
}

// IsRead reports whether a transfer of n bytes is a read request. The host
// encodes reads as exactly six bytes; every other length is a write.
func IsRead(n int) bool { return n == readRequestSize }

// Encode returns the 10-byte wire form of the packet.
func (p Packet) Encode() []byte {
	buf := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.Header)
	binary.LittleEndian.PutUint32(buf[2:6], p.Address)
	binary.LittleEndian.PutUint32(buf[6:10], p.Data)
	return buf
}

// EncodeReply builds the packet-sized reply to a read request: the result
// word occupies the first four bytes.
func EncodeReply(result uint32) []byte {
	buf := make([]byte, PacketSize)
	binary.LittleEndian.PutUint32(buf[0:4], result)
	return buf
}

// AccessClass identifies which address space a packet targets.
type AccessClass int

const (
	AccessPCIConfig AccessClass = iota
	AccessIOReg
	AccessVRAM
	AccessUnknown
)

// Access is the decoded addressing information carried by a packet header.
type Access struct {
	Class AccessClass
	// LaneOffset is the byte-lane offset added to the register address for
	// I/O accesses, decoded from the low header bits (8->3, 4->2, 2->1,
	// anything else->0).
	LaneOffset uint32
	// LaneMask is the 4-bit byte-enable mask for VRAM accesses.
	LaneMask uint8
}

// Classify derives the access class and lane information from a header.
func Classify(header uint16) Access {
	if header == HeaderPCIConfig {
		return Access{Class: AccessPCIConfig}
	}
	switch (header >> 6) & 0x03 {
	case typeIO:
		var off uint32
		switch header & 0x0F {
		case 8:
			off = 3
		case 4:
			off = 2
		case 2:
			off = 1
		}
		return Access{Class: AccessIOReg, LaneOffset: off}
	case typeMem:
		return Access{Class: AccessVRAM, LaneMask: uint8(header & 0x0F)}
	}
	return Access{Class: AccessUnknown}
}
