// Package sisvga emulates a SiS 315 based USB2VGA dongle: a USB bridge in
// front of a graphics core with PCI configuration space, byte-granular I/O
// registers and video memory, plus a streamed bulk path into that memory.
package sisvga

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vuga-dev/vuga/device"
	"github.com/vuga-dev/vuga/usb"
	"github.com/vuga-dev/vuga/usbip"
)

// Event kinds published on the adapter's event stream.
const (
	EventLineDone  = "hline-done"
	EventFrameDone = "frame-done"
	EventBulkDone  = "bulk-done"
)

// Event is one progress notification from the adapter.
type Event struct {
	Kind    string `json:"kind"`
	Address uint32 `json:"address,omitempty"`
	Length  int    `json:"length,omitempty"`
}

// Adapter glues the register engine to the USB transfer surface. Each of the
// four OUT endpoints is serviced by its own worker goroutine, started when
// the host configures the device, so transfers on one endpoint never stall
// another while per-endpoint ordering is preserved.
type Adapter struct {
	descriptor usb.Descriptor
	logger     *slog.Logger
	engine     *Engine
	frame      *FrameSync

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	gfxOut    chan []byte
	bridgeOut chan []byte
	smallOut  chan []byte
	largeOut  chan []byte
	gfxIn     chan []byte
	bridgeIn  chan []byte

	events chan Event
}

// New builds the stock adapter.
func New(o *device.CreateOptions) (usb.Device, error) {
	return NewWithOptions(DefaultOptions(), o)
}

// NewFault builds the misreporting variant used for driver fault testing.
func NewFault(o *device.CreateOptions) (usb.Device, error) {
	return NewWithOptions(FaultOptions(), o)
}

// NewWithOptions builds an adapter with an explicit memory configuration.
func NewWithOptions(opts Options, o *device.CreateOptions) (*Adapter, error) {
	if opts.VRAMSize == 0 || opts.VRAMSize&(opts.VRAMSize-1) != 0 {
		return nil, fmt.Errorf("vram size %#x is not a power of two", opts.VRAMSize)
	}

	logger := slog.Default().With("device", "sisvga")
	a := &Adapter{
		logger: logger,
		engine: NewEngine(opts, logger),
		events: make(chan Event, 32),
	}
	a.frame = NewFrameSync(logger, a.publish)
	a.engine.SetVRAMWriteObserver(a.frame.Observe)
	a.descriptor = buildDescriptor(o)
	return a, nil
}

func buildDescriptor(o *device.CreateOptions) usb.Descriptor {
	vid := uint16(DefaultVID)
	pid := uint16(DefaultPID)
	if o != nil && o.IdVendor != nil {
		vid = *o.IdVendor
	}
	if o != nil && o.IdProduct != nil {
		pid = *o.IdProduct
	}
	return usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    64,
			IDVendor:           vid,
			IDProduct:          pid,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			ISerialNumber:      3,
			BNumConfigurations: 1,
			Speed:              3, // high speed
		},
		Interfaces: []usb.InterfaceConfig{{
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber: 0,
				BNumEndpoints:    6,
				BInterfaceClass:  0xFF, // vendor specific
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: EpGfx, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
				{BEndpointAddress: EpGfx | usb.EndpointDirIn, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
				{BEndpointAddress: EpSmallBulk, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
				{BEndpointAddress: EpLargeBulk, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
				{BEndpointAddress: EpBridge, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
				{BEndpointAddress: EpBridge | usb.EndpointDirIn, BMAttributes: usb.EndpointXferBulk, WMaxPacketSize: 512},
			},
		}},
		Strings: map[uint8]string{
			1: "Magic Control Technology",
			2: "USB2VGA",
			3: "0001",
		},
	}
}

func (a *Adapter) GetDescriptor() *usb.Descriptor { return &a.descriptor }

// Engine exposes the register state for the control API and tests.
func (a *Adapter) Engine() *Engine { return a.engine }

// Frame exposes the frame watcher.
func (a *Adapter) Frame() *FrameSync { return a.frame }

// Events is the adapter's progress stream. Events are dropped when no one
// is draining the channel.
func (a *Adapter) Events() <-chan Event { return a.events }

func (a *Adapter) publish(ev Event) {
	select {
	case a.events <- ev:
	default:
	}
}

// Configure starts the four endpoint workers. Called on SET_CONFIGURATION;
// calling it while already configured is a no-op.
func (a *Adapter) Configure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	a.stop = make(chan struct{})
	a.gfxOut = make(chan []byte)
	a.bridgeOut = make(chan []byte)
	a.smallOut = make(chan []byte)
	a.largeOut = make(chan []byte)
	a.gfxIn = make(chan []byte)
	a.bridgeIn = make(chan []byte)
	a.running = true

	a.wg.Add(4)
	go a.servePackets(a.gfxOut, a.gfxIn, a.engine.ApplyGFX, a.stop)
	go a.servePackets(a.bridgeOut, a.bridgeIn, a.engine.ApplyBridge, a.stop)
	go a.serveBulk(a.smallOut, a.stop)
	go a.serveBulk(a.largeOut, a.stop)

	a.logger.Info("adapter configured, endpoint workers started")
	return nil
}

// Reset stops the endpoint workers and unblocks any transfer waiting on
// them. Safe to call repeatedly and without a prior Configure.
func (a *Adapter) Reset() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stop)
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("adapter reset, endpoint workers stopped")
}

// servePackets drains one register endpoint: decode, apply, and for read
// requests hand the reply to the companion IN endpoint.
func (a *Adapter) servePackets(out <-chan []byte, in chan<- []byte, apply func(Packet, bool) uint32, stop <-chan struct{}) {
	defer a.wg.Done()
	for {
		select {
		case <-stop:
			return
		case buf := <-out:
			pkt, ok := Decode(buf)
			if !ok {
				a.logger.Debug("short register transfer dropped", "length", len(buf))
				continue
			}
			isRead := IsRead(len(buf))
			result := apply(pkt, isRead)
			if !isRead {
				continue
			}
			select {
			case in <- EncodeReply(result):
			case <-stop:
				return
			}
		}
	}
}

func (a *Adapter) serveBulk(out <-chan []byte, stop <-chan struct{}) {
	defer a.wg.Done()
	for {
		select {
		case <-stop:
			return
		case chunk := <-out:
			res := a.engine.ConsumeBulk(chunk)
			if res.Completed {
				a.publish(Event{Kind: EventBulkDone, Address: res.Target, Length: len(chunk)})
			}
		}
	}
}

// HandleTransfer routes one non-EP0 transfer. OUT transfers enqueue to the
// endpoint's worker; IN transfers block until the worker produces a reply.
// Both unblock with no data when the adapter is reset mid-transfer.
func (a *Adapter) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	a.mu.Lock()
	running := a.running
	stop := a.stop
	a.mu.Unlock()
	if !running {
		a.logger.Debug("transfer on unconfigured adapter dropped", "ep", ep, "dir", dir)
		return nil
	}

	if dir == usbip.DirOut {
		buf := make([]byte, len(out))
		copy(buf, out)
		var ch chan []byte
		switch ep {
		case EpGfx:
			ch = a.gfxOut
		case EpBridge:
			ch = a.bridgeOut
		case EpSmallBulk:
			ch = a.smallOut
		case EpLargeBulk:
			ch = a.largeOut
		default:
			a.logger.Warn("transfer on unknown endpoint", "ep", ep)
			return nil
		}
		select {
		case ch <- buf:
		case <-stop:
		}
		return nil
	}

	var ch chan []byte
	switch ep {
	case EpGfx:
		ch = a.gfxIn
	case EpBridge:
		ch = a.bridgeIn
	default:
		a.logger.Warn("read on unknown endpoint", "ep", ep)
		return nil
	}
	select {
	case reply := <-ch:
		return reply
	case <-stop:
		return nil
	}
}
