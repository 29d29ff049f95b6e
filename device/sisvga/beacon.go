package sisvga

import (
	"log/slog"
	"sync"
)

// FrameSync watches the register-path VRAM writes for the corner pixel the
// driver's screen-clear sweep touches twice: once at the end of the bottom
// horizontal line and once more at the end of the right vertical line, which
// completes the frame. Install Observe as the engine's VRAM write observer.
type FrameSync struct {
	logger *slog.Logger

	mu   sync.Mutex
	hits int
	done chan struct{}
	emit func(Event)
}

// NewFrameSync builds a frame watcher. emit, if non-nil, receives progress
// events and must not block.
func NewFrameSync(logger *slog.Logger, emit func(Event)) *FrameSync {
	return &FrameSync{
		logger: logger,
		done:   make(chan struct{}),
		emit:   emit,
	}
}

// Observe inspects one VRAM write. Matches both the address and data of the
// corner pixel; everything else is ignored.
func (f *FrameSync) Observe(addr, data uint32) {
	if addr != BeaconAddress || data != BeaconData {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	switch f.hits {
	case 1:
		f.logger.Info("frame: bottom horizontal line done")
		f.send(Event{Kind: EventLineDone, Address: addr})
	case 2:
		f.logger.Info("frame: drawing complete")
		f.send(Event{Kind: EventFrameDone, Address: addr})
		close(f.done)
	}
}

func (f *FrameSync) send(ev Event) {
	if f.emit != nil {
		f.emit(ev)
	}
}

// Done is closed when the second corner hit completes the frame.
func (f *FrameSync) Done() <-chan struct{} { return f.done }

// Hits returns the number of corner writes seen so far.
func (f *FrameSync) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// Reset rearms the watcher for the next frame.
func (f *FrameSync) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits >= 2 {
		f.done = make(chan struct{})
	}
	f.hits = 0
}
