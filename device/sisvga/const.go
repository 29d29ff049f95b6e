package sisvga

// USB identity of the emulated adapter (Magic Control Technology SVGA).
const (
	DefaultVID = 0x0711
	DefaultPID = 0x0900
)

// Endpoint numbers. The gfx and bridge pairs share a number between their
// OUT and IN halves; the two data endpoints are OUT only.
const (
	EpGfx       = 0x0E // register packets, replies on the IN half
	EpBridge    = 0x0D // bridge packets, replies on the IN half
	EpSmallBulk = 0x01 // streamed VRAM data, small transfers
	EpLargeBulk = 0x03 // streamed VRAM data, large transfers
)

// Packet header values and fields.
const (
	// HeaderPCIConfig marks a PCI configuration space access.
	HeaderPCIConfig = 0x008F

	// Bridge packets are expected to carry one of these headers; anything
	// else is accepted with a warning.
	headerBridge    = 0x001F
	headerBridgeAlt = 0x000F

	// Bits 6-7 of the header select the target space for non-PCI packets.
	typeMem = 0
	typeIO  = 1
)

// Address space geometry.
const (
	IOPortBase = 0x0000D000
	VRAMBase   = 0xD0000000

	PCIConfigWords = 128
	BridgeRegWords = 1024
	IORegCount     = 128

	// Backing store is 8 MiB; the device claims 6 MiB through SR[0x14]
	// (asymmetric topology reports 4 MiB * 1.5).
	DefaultVRAMSize       = 8 << 20
	DefaultAdvertisedVRAM = 6 << 20
)

// Bridge register offsets capturing the bulk transfer configuration.
// Small and large paths use distinct offsets but feed one shared state.
const (
	RegSmallBulkFlags = 0x180
	RegSmallBulkLen   = 0x190
	RegSmallBulkAddr  = 0x194
	RegLargeBulkFlags = 0x1C0
	RegLargeBulkLen   = 0x1D0
	RegLargeBulkAddr  = 0x1D4
)

// SR index port and the trigger bytes that arm one-shot query overrides.
const (
	SRIndexPort     = 0x44
	TriggerRAMType  = 0x3A
	TriggerVRAMSize = 0x14
)

// RAM type codes reported on a RAM-type query.
const (
	RAMTypeSDR = 0x1
	RAMTypeDDR = 0x3
)

// RAM topology codes (SR[0x14] bits 2-3).
const (
	Topology1Ch1R = 0x00 // 1 channel / 1 rank (1x)
	Topology1Ch2R = 0x01 // 1 channel / 2 rank (2x)
	TopologyAsym  = 0x02 // asymmetric (1.5x)
	Topology2Ch   = 0x03 // 2 channel (2x)
)

// Corner pixel written twice by the driver's screen-clear sweep:
// (479*640*2) + (639*2) = 0x95FFE, reached as packet 0x95FFC with mask 0xC.
const (
	BeaconAddress = 0xD0095FFC
	BeaconData    = 0xF1000000
)

// Sentinel bulk configuration of the known out-of-bounds write path.
const (
	overflowSentinelAddr   = 0xFFFFFFF0
	overflowSentinelMinLen = 0x10
)

// Device info surface, mirroring the adapter's character-device config block.
const (
	InfoID         = 0x53495355 // 'SISU'
	InfoVersion    = 1
	InfoRevision   = 0
	InfoPatchlevel = 0

	PseudoMemBase    = 0x10000000
	PseudoMMIOBase   = 0x20000000
	PseudoIOPortBase = 0x0000D000
	PseudoPCIBase    = 0x00010000
)
