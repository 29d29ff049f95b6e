package sisvga

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Engine owns the adapter's register state and applies decoded packets to
// it. Each store carries its own lock; the engine never holds two at once.
type Engine struct {
	logger *slog.Logger

	pci    *RegisterFile
	bridge *RegisterFile
	io     *IORegisterFile
	vram   *VRAM
	bulk   *BulkState

	optMu sync.Mutex
	opts  Options

	overflow atomic.Bool

	obsMu        sync.Mutex
	vramObserver func(addr, data uint32)
}

func NewEngine(opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		pci:    NewRegisterFile(PCIConfigWords),
		bridge: NewRegisterFile(BridgeRegWords),
		io:     NewIORegisterFile(IORegCount),
		vram:   NewVRAM(opts.VRAMSize, opts.StrictBounds),
		bulk:   &BulkState{},
		opts:   opts,
	}
}

// SetVRAMWriteObserver installs a hook invoked after every register-path
// VRAM write, with the packet's address and data. Pass nil to remove it.
// The hook runs outside the VRAM lock and must not call back into the engine.
func (e *Engine) SetVRAMWriteObserver(fn func(addr, data uint32)) {
	e.obsMu.Lock()
	e.vramObserver = fn
	e.obsMu.Unlock()
}

func (e *Engine) notifyVRAMWrite(addr, data uint32) {
	e.obsMu.Lock()
	fn := e.vramObserver
	e.obsMu.Unlock()
	if fn != nil {
		fn(addr, data)
	}
}

// ApplyBridge executes one packet against the bridge register bank and
// returns the read result (zero for writes and rejected accesses).
func (e *Engine) ApplyBridge(p Packet, isRead bool) uint32 {
	if p.Header != headerBridge && p.Header != headerBridgeAlt {
		e.logger.Warn("bridge: unexpected packet header",
			"header", p.Header, "address", p.Address)
	}

	index := p.Address / 4
	if isRead {
		value, ok := e.bridge.Load(index)
		if !ok {
			e.logger.Warn("bridge: read out of range", "address", p.Address)
			return 0
		}
		return value
	}

	if !e.bridge.Store(index, p.Data) {
		e.logger.Warn("bridge: write out of range", "address", p.Address)
		return 0
	}

	switch p.Address {
	case RegSmallBulkAddr, RegLargeBulkAddr:
		e.bulk.SetTarget(p.Data)
	case RegSmallBulkLen, RegLargeBulkLen:
		e.bulk.SetLength(p.Data)
	case RegSmallBulkFlags, RegLargeBulkFlags:
		e.bulk.Commit(p.Data)
		e.logger.Debug("bridge: bulk transfer committed",
			"target", e.bulk.Snapshot().Target,
			"length", e.bulk.Snapshot().Remaining)
	}

	if e.overflowSentinel() {
		if s := e.bulk.Snapshot(); s.Target == overflowSentinelAddr && s.Remaining > overflowSentinelMinLen {
			if e.overflow.CompareAndSwap(false, true) {
				e.logger.Warn("bridge: out-of-bounds bulk configuration detected",
					"target", s.Target, "length", s.Remaining)
			}
		}
	}
	return 0
}

// ApplyGFX executes one packet against the graphics core: PCI configuration
// space, the I/O shadow registers or VRAM, selected by the packet header.
// It returns the read result (zero for writes).
func (e *Engine) ApplyGFX(p Packet, isRead bool) uint32 {
	acc := Classify(p.Header)
	switch acc.Class {
	case AccessPCIConfig:
		if isRead {
			return e.pci.LoadMasked(p.Address)
		}
		e.pci.StoreMasked(p.Address, p.Data)
		return 0

	case AccessIOReg:
		return e.applyIO(p, acc, isRead)

	case AccessVRAM:
		base := p.Address - VRAMBase
		if isRead {
			result, oob := e.vram.ReadLanes(base, acc.LaneMask)
			if oob != 0 {
				e.logger.Warn("gfx: vram read lanes out of range",
					"address", p.Address, "lanes", oob)
			}
			return result
		}
		oob := e.vram.WriteLanes(base, acc.LaneMask, p.Data)
		if oob != 0 {
			e.logger.Warn("gfx: vram write lanes out of range",
				"address", p.Address, "lanes", oob)
		}
		e.notifyVRAMWrite(p.Address, p.Data)
		return 0
	}

	e.logger.Error("gfx: unknown access type in header", "header", p.Header)
	return 0
}

// applyIO handles the byte-granular I/O space. The register offset is the
// packet address with the port base stripped plus the byte-lane offset; the
// data byte travels in the lane selected by the low address bits.
func (e *Engine) applyIO(p Packet, acc Access, isRead bool) uint32 {
	offset := (p.Address &^ uint32(IOPortBase)) + acc.LaneOffset
	shift := (offset & 3) * 8

	if !isRead {
		if !e.io.Write(offset, (p.Data>>shift)&0xFF) {
			e.logger.Warn("gfx: io write out of range", "address", p.Address)
		}
		return 0
	}

	value, query, ok := e.io.Read(offset)
	if !ok {
		e.logger.Warn("gfx: io read out of range", "address", p.Address)
		return 0
	}
	switch query {
	case QueryRAMType:
		value = uint32(e.ramType())
	case QueryVRAMSize:
		value = uint32(VRAMConfigReg(e.advertisedVRAM()))
	}
	return value << shift
}

// ConsumeBulk applies one streamed data chunk to the current bulk transfer.
func (e *Engine) ConsumeBulk(chunk []byte) ConsumeResult {
	res := e.bulk.Consume(chunk, e.vram)
	if !res.Applied {
		e.logger.Warn("bulk: chunk rejected, write would run past vram end",
			"target", res.Target, "length", len(chunk))
	}
	if res.Completed {
		e.logger.Debug("bulk: transfer complete", "length", len(chunk))
	}
	return res
}

// OverflowTripped reports whether the sentinel bulk configuration was seen.
func (e *Engine) OverflowTripped() bool { return e.overflow.Load() }

// ClearOverflow resets the sentinel latch.
func (e *Engine) ClearOverflow() { e.overflow.Store(false) }

// SetStrictBounds switches VRAM lane accesses between wrapping and dropping.
func (e *Engine) SetStrictBounds(strict bool) {
	e.optMu.Lock()
	e.opts.StrictBounds = strict
	e.optMu.Unlock()
	e.vram.SetStrict(strict)
}

// SetOverflowSentinel arms or disarms the out-of-bounds bulk detector.
func (e *Engine) SetOverflowSentinel(on bool) {
	e.optMu.Lock()
	e.opts.OverflowSentinel = on
	e.optMu.Unlock()
}

func (e *Engine) overflowSentinel() bool {
	e.optMu.Lock()
	defer e.optMu.Unlock()
	return e.opts.OverflowSentinel
}

func (e *Engine) ramType() uint8 {
	e.optMu.Lock()
	defer e.optMu.Unlock()
	return e.opts.RAMType
}

func (e *Engine) advertisedVRAM() (uint32, uint8) {
	e.optMu.Lock()
	defer e.optMu.Unlock()
	return e.opts.AdvertisedVRAM, e.opts.Topology
}

// State is a point-in-time summary of the engine, exposed through the API.
type State struct {
	VRAMSize         uint32       `json:"vramSize"`
	AdvertisedVRAM   uint32       `json:"advertisedVram"`
	RAMType          uint8        `json:"ramType"`
	Topology         uint8        `json:"topology"`
	StrictBounds     bool         `json:"strictBounds"`
	OverflowSentinel bool         `json:"overflowSentinel"`
	Overflow         bool         `json:"overflow"`
	Bulk             BulkSnapshot `json:"bulk"`
}

func (e *Engine) State() State {
	e.optMu.Lock()
	opts := e.opts
	e.optMu.Unlock()
	return State{
		VRAMSize:         opts.VRAMSize,
		AdvertisedVRAM:   opts.AdvertisedVRAM,
		RAMType:          opts.RAMType,
		Topology:         opts.Topology,
		StrictBounds:     opts.StrictBounds,
		OverflowSentinel: opts.OverflowSentinel,
		Overflow:         e.overflow.Load(),
		Bulk:             e.bulk.Snapshot(),
	}
}

// DeviceInfo mirrors the config block the original adapter exposed through
// its character device: identity, version triple and the pseudo base
// addresses the driver maps the register spaces at.
type DeviceInfo struct {
	ID         uint32 `json:"id"`
	Version    uint8  `json:"version"`
	Revision   uint8  `json:"revision"`
	Patchlevel uint8  `json:"patchlevel"`
	MemBase    uint32 `json:"memBase"`
	MMIOBase   uint32 `json:"mmioBase"`
	IOPortBase uint32 `json:"ioPortBase"`
	PCIBase    uint32 `json:"pciBase"`
	VRAMSize   uint32 `json:"vramSize"`
}

// Info reports the device info block. VRAMSize is the advertised size, which
// the fault build deliberately misreports.
func (e *Engine) Info() DeviceInfo {
	adv, _ := e.advertisedVRAM()
	return DeviceInfo{
		ID:         InfoID,
		Version:    InfoVersion,
		Revision:   InfoRevision,
		Patchlevel: InfoPatchlevel,
		MemBase:    PseudoMemBase,
		MMIOBase:   PseudoMMIOBase,
		IOPortBase: PseudoIOPortBase,
		PCIBase:    PseudoPCIBase,
		VRAMSize:   adv,
	}
}

// VRAMReadAt copies part of the backing store for inspection.
func (e *Engine) VRAMReadAt(off uint32, dst []byte) bool {
	return e.vram.ReadAt(off, dst)
}
