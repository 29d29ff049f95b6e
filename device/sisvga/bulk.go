package sisvga

import "sync"

// BulkState tracks the reassembly of a streamed VRAM write configured through
// the bridge register bank: target address, bytes remaining, transfer flags
// and whether a transfer is currently committed. The whole tuple is guarded
// by one mutex so a commit and each chunk apply observe a consistent state.
type BulkState struct {
	mu         sync.Mutex
	target     uint32
	remaining  uint32
	flags      uint32
	configured bool
}

// BulkSnapshot is a point-in-time copy of the reassembly state.
type BulkSnapshot struct {
	Target     uint32
	Remaining  uint32
	Flags      uint32
	Configured bool
}

func (b *BulkState) SetTarget(addr uint32) {
	b.mu.Lock()
	b.target = addr
	b.mu.Unlock()
}

func (b *BulkState) SetLength(n uint32) {
	b.mu.Lock()
	b.remaining = n
	b.mu.Unlock()
}

// Commit records the transfer flags and marks the configured target/length
// pair as active. Chunks arriving on the data endpoints consume it.
func (b *BulkState) Commit(flags uint32) {
	b.mu.Lock()
	b.flags = flags
	b.configured = true
	b.mu.Unlock()
}

func (b *BulkState) Snapshot() BulkSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkSnapshot{
		Target:     b.target,
		Remaining:  b.remaining,
		Flags:      b.flags,
		Configured: b.configured,
	}
}

// ConsumeResult reports the outcome of applying one streamed chunk.
type ConsumeResult struct {
	// Applied is false when the chunk was rejected because it would run
	// past the end of the store.
	Applied bool
	// Completed is true when this chunk brought a committed transfer to
	// zero remaining bytes; the state has been reset to idle.
	Completed bool
	// Target is the address the chunk was aimed at, for diagnostics.
	Target uint32
}

// Consume applies one streamed chunk to vram at the current target. A chunk
// that would run past the end of the store is rejected whole. The cursor
// still advances by the requested length either way, matching the hardware's
// observed behavior, so a transfer aimed out of bounds keeps failing
// addresses rather than silently landing later chunks. When a committed
// transfer reaches zero remaining bytes the state resets to idle.
func (b *BulkState) Consume(chunk []byte, vram *VRAM) ConsumeResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := ConsumeResult{Target: b.target}
	res.Applied = vram.CopyIn(b.target-VRAMBase, chunk)

	n := uint32(len(chunk))
	b.target += n
	b.remaining -= n

	if b.configured && b.remaining == 0 {
		b.target = 0
		b.flags = 0
		b.configured = false
		res.Completed = true
	}
	return res
}
