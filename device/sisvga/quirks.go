package sisvga

import "math/bits"

// Options selects the simulated memory configuration and the fault-injection
// behavior of the adapter.
type Options struct {
	// VRAMSize is the backing store size in bytes. Must be a power of two.
	VRAMSize uint32
	// AdvertisedVRAM is the size reported through the SR size register. It
	// may differ from the backing store to simulate misreporting hardware.
	AdvertisedVRAM uint32
	RAMType        uint8
	Topology       uint8
	// StrictBounds drops out-of-range VRAM byte lanes instead of wrapping.
	StrictBounds bool
	// OverflowSentinel arms detection of the known out-of-bounds bulk
	// configuration (target 0xFFFFFFF0 with more than 0x10 bytes).
	OverflowSentinel bool
}

// DefaultOptions is the stock adapter: 8 MiB backing store advertised as
// 6 MiB of DDR in asymmetric topology.
func DefaultOptions() Options {
	return Options{
		VRAMSize:       DefaultVRAMSize,
		AdvertisedVRAM: DefaultAdvertisedVRAM,
		RAMType:        RAMTypeDDR,
		Topology:       TopologyAsym,
	}
}

// FaultOptions is the misreporting variant: the backing store stays at 8 MiB
// but the device claims 1 GiB of single-channel SDR, and the overflow
// sentinel is armed.
func FaultOptions() Options {
	return Options{
		VRAMSize:         DefaultVRAMSize,
		AdvertisedVRAM:   1 << 30,
		RAMType:          RAMTypeSDR,
		Topology:         Topology1Ch1R,
		OverflowSentinel: true,
	}
}

// VRAMConfigReg encodes an advertised size for the SR size register: bits
// 7-4 carry log2 of the per-channel megabytes, bits 3-2 the topology mode.
// The per-channel base undoes the topology multiplier, so 6 MiB asymmetric
// encodes as 4 MiB (0x28) and dual-channel or dual-rank sizes halve. Sizes
// below one per-channel megabyte have no encoding and read back as zero.
func VRAMConfigReg(sizeBytes uint32, mode uint8) uint8 {
	mb := sizeBytes >> 20
	switch mode {
	case TopologyAsym:
		mb = mb * 2 / 3
	case Topology1Ch2R, Topology2Ch:
		mb >>= 1
	}
	if mb == 0 {
		return 0
	}
	power := uint8(bits.Len32(mb) - 1)
	return power<<4 | mode<<2
}
