package auth

import (
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	frameHeaderSize = 3
	maxFrameSize    = 1 << 20
	maxPlaintext    = maxFrameSize - chacha20poly1305.Overhead

	clientLabel = "vuga:c2s:v1"
	serverLabel = "vuga:s2c:v1"
)

// Conn encrypts a stream with XChaCha20-Poly1305. Each direction runs its
// own subkey and an implicit frame counter, so nonces never travel on the
// wire and a replayed or reordered frame fails authentication.
type Conn struct {
	net.Conn

	writeMu sync.Mutex
	send    cipher.AEAD
	sendSeq uint64

	recv     cipher.AEAD
	recvSeq  uint64
	leftover []byte
}

// WrapConn layers the session cipher over conn. Both peers must pass the
// same session key; isClient selects which directional subkey encrypts
// outbound frames.
func WrapConn(conn net.Conn, sessionKey []byte, isClient bool) (net.Conn, error) {
	if len(sessionKey) != KeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(sessionKey))
	}
	c2s, err := directionAEAD(sessionKey, clientLabel)
	if err != nil {
		return nil, err
	}
	s2c, err := directionAEAD(sessionKey, serverLabel)
	if err != nil {
		return nil, err
	}
	c := &Conn{Conn: conn, send: c2s, recv: s2c}
	if !isClient {
		c.send, c.recv = s2c, c2s
	}
	return c, nil
}

func directionAEAD(sessionKey []byte, label string) (cipher.AEAD, error) {
	sub, err := hkdf.Expand(sha256.New, sessionKey, label, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(sub)
}

func frameNonce(seq uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSizeX-8:], seq)
	return nonce
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	total := 0
	for {
		chunk := p
		if len(chunk) > maxPlaintext {
			chunk = chunk[:maxPlaintext]
		}
		if err := c.writeFrame(chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
		if len(p) == 0 {
			return total, nil
		}
	}
}

func (c *Conn) writeFrame(pt []byte) error {
	ct := c.send.Seal(nil, frameNonce(c.sendSeq), pt, nil)
	c.sendSeq++

	frame := make([]byte, frameHeaderSize+len(ct))
	frame[0] = byte(len(ct) >> 16)
	frame[1] = byte(len(ct) >> 8)
	frame[2] = byte(len(ct))
	copy(frame[frameHeaderSize:], ct)
	_, err := c.Conn.Write(frame)
	return err
}

func (c *Conn) Read(p []byte) (int, error) {
	if len(c.leftover) == 0 {
		pt, err := c.readFrame()
		if err != nil {
			return 0, err
		}
		c.leftover = pt
	}
	n := copy(p, c.leftover)
	c.leftover = c.leftover[n:]
	return n, nil
}

func (c *Conn) readFrame() ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(c.Conn, hdr[:]); err != nil {
		return nil, err
	}
	length := uint32(hdr[0])<<16 | uint32(hdr[1])<<8 | uint32(hdr[2])
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}
	ct := make([]byte, length)
	if _, err := io.ReadFull(c.Conn, ct); err != nil {
		return nil, err
	}
	pt, err := c.recv.Open(nil, frameNonce(c.recvSeq), ct, nil)
	if err != nil {
		return nil, err
	}
	c.recvSeq++
	return pt, nil
}
