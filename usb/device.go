package usb

// Device is the minimal interface an emulated device must implement.
// It only handles non-EP0 (bulk/interrupt) transfers.
type Device interface {
	// HandleTransfer processes a non-EP0 transfer.
	// ep is the endpoint number (without direction bit). dir is usbip.DirIn
	// or usbip.DirOut. For IN transfers, return the payload to send; for
	// OUT, consume 'out' and return nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}

// Configurable is implemented by devices that need to react to the host's
// configuration lifecycle. Configure is called when the host issues
// SET_CONFIGURATION; Reset when the host detaches or the device is removed.
// Reset must stop any endpoint service started by Configure and must be safe
// to call more than once.
type Configurable interface {
	Configure() error
	Reset()
}
