package sisvga

import "sync"

// RegisterFile is a fixed-capacity bank of 32-bit registers guarded by its
// own mutex. PCI configuration space uses the masked accessors (indexes wrap
// within the bank); the bridge bank uses the checked ones (out-of-range
// indexes are rejected).
type RegisterFile struct {
	mu    sync.Mutex
	words []uint32
}

// NewRegisterFile allocates a zeroed bank. Capacity must be a power of two
// for the masked accessors to wrap correctly.
func NewRegisterFile(capacity int) *RegisterFile {
	return &RegisterFile{words: make([]uint32, capacity)}
}

func (f *RegisterFile) Cap() int { return len(f.words) }

// LoadMasked reads the register at index modulo the bank capacity.
func (f *RegisterFile) LoadMasked(index uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.words[index&uint32(len(f.words)-1)]
}

// StoreMasked writes the register at index modulo the bank capacity.
func (f *RegisterFile) StoreMasked(index uint32, value uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words[index&uint32(len(f.words)-1)] = value
}

// Load reads the register at index; ok is false when index is out of range.
func (f *RegisterFile) Load(index uint32) (value uint32, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= uint32(len(f.words)) {
		return 0, false
	}
	return f.words[index], true
}

// Store writes the register at index; ok is false when index is out of range
// and nothing was stored.
func (f *RegisterFile) Store(index uint32, value uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= uint32(len(f.words)) {
		return false
	}
	f.words[index] = value
	return true
}

// QueryKind names the one-shot query a read of the I/O space must answer
// instead of returning the stored register value.
type QueryKind int

const (
	QueryNone QueryKind = iota
	QueryRAMType
	QueryVRAMSize
)

// IORegisterFile models the byte-granular I/O shadow registers together with
// the one-shot query flags armed through the SR index port. The flags live
// next to the registers so arming, reading and clearing all happen under the
// same lock.
type IORegisterFile struct {
	mu   sync.Mutex
	regs []uint32

	pendingRAMType  bool
	pendingVRAMSize bool
}

func NewIORegisterFile(capacity int) *IORegisterFile {
	return &IORegisterFile{regs: make([]uint32, capacity)}
}

// Write stores a byte value at offset. Writing a trigger byte to the SR
// index port arms the matching one-shot query for the next read. Out-of-range
// offsets are ignored and reported via ok.
func (f *IORegisterFile) Write(offset uint32, value uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= uint32(len(f.regs)) {
		return false
	}
	f.regs[offset] = value
	if offset == SRIndexPort {
		switch value {
		case TriggerRAMType:
			f.pendingRAMType = true
		case TriggerVRAMSize:
			f.pendingVRAMSize = true
		}
	}
	return true
}

// Read returns the stored value at offset and which one-shot query, if any,
// was pending. All pending queries are cleared by a single read; when both
// are armed the vram-size query is reported, as the ram-type answer is
// evaluated first and then overwritten. A subsequent read of the same offset
// returns the stored value with QueryNone.
func (f *IORegisterFile) Read(offset uint32) (value uint32, query QueryKind, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= uint32(len(f.regs)) {
		return 0, QueryNone, false
	}
	value = f.regs[offset]
	if f.pendingRAMType {
		f.pendingRAMType = false
		query = QueryRAMType
	}
	if f.pendingVRAMSize {
		f.pendingVRAMSize = false
		query = QueryVRAMSize
	}
	return value, query, true
}

// VRAM is the emulated video memory. The capacity is a power of two so that
// lenient accesses can wrap by masking the address; in strict mode an
// out-of-range byte lane is dropped instead.
type VRAM struct {
	mu     sync.Mutex
	data   []byte
	strict bool
}

func NewVRAM(size uint32, strict bool) *VRAM {
	return &VRAM{data: make([]byte, size), strict: strict}
}

func (v *VRAM) Size() uint32 { return uint32(len(v.data)) }

// SetStrict switches between wrapping and dropping out-of-range lanes.
func (v *VRAM) SetStrict(strict bool) {
	v.mu.Lock()
	v.strict = strict
	v.mu.Unlock()
}

// ReadLanes assembles a 32-bit value from the byte lanes enabled in mask,
// starting at base. Returned oob bits mark lanes that fell outside the store
// in strict mode; those bytes read as zero.
func (v *VRAM) ReadLanes(base uint32, mask uint8) (result uint32, oob uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for lane := uint32(0); lane < 4; lane++ {
		if mask&(1<<lane) == 0 {
			continue
		}
		addr := base + lane
		if !v.strict {
			addr &= uint32(len(v.data) - 1)
		}
		if addr >= uint32(len(v.data)) {
			oob |= 1 << lane
			continue
		}
		result |= uint32(v.data[addr]) << (lane * 8)
	}
	return result, oob
}

// WriteLanes scatters the bytes of data into the lanes enabled in mask,
// starting at base. Returned oob bits mark lanes dropped in strict mode.
func (v *VRAM) WriteLanes(base uint32, mask uint8, data uint32) (oob uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for lane := uint32(0); lane < 4; lane++ {
		if mask&(1<<lane) == 0 {
			continue
		}
		addr := base + lane
		if !v.strict {
			addr &= uint32(len(v.data) - 1)
		}
		if addr >= uint32(len(v.data)) {
			oob |= 1 << lane
			continue
		}
		v.data[addr] = byte(data >> (lane * 8))
	}
	return oob
}

// CopyIn copies chunk into the store at off. When any part of the chunk
// would land past the end, nothing is applied and ok is false.
func (v *VRAM) CopyIn(off uint32, chunk []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if uint64(off)+uint64(len(chunk)) > uint64(len(v.data)) {
		return false
	}
	copy(v.data[off:], chunk)
	return true
}

// ReadAt copies a snapshot of the store at off into dst, for inspection.
func (v *VRAM) ReadAt(off uint32, dst []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if uint64(off)+uint64(len(dst)) > uint64(len(v.data)) {
		return false
	}
	copy(dst, v.data[off:])
	return true
}
