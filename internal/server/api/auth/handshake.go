package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vuga-dev/vuga/apitypes"
	apierror "github.com/vuga-dev/vuga/internal/server/api/error"
)

const (
	// HandshakeMagic opens every authenticated session. The trailing byte
	// versions the transcript format.
	HandshakeMagic = "VUGA\x01"
	// NonceSize is the length of each side's handshake nonce.
	NonceSize = 32

	authContext = "vuga:auth:v1"
	statusOK    = 0x01
	macSize     = sha256.Size
)

// ErrHandshakeRequired is returned when a client speaks plaintext to a
// password-protected server.
var ErrHandshakeRequired error = apierror.ErrUnauthorized("authentication required")

// IsAuthHandshake reports whether the connection opens with the handshake
// magic, without consuming it.
func IsAuthHandshake(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(len(HandshakeMagic))
	if err != nil {
		return false, err
	}
	return string(b) == HandshakeMagic, nil
}

// transcriptMAC authenticates one side's contribution. The role label keeps
// a client proof from being replayed as a server proof.
func transcriptMAC(key []byte, role string, nonces ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(authContext))
	mac.Write([]byte(role))
	for _, n := range nonces {
		mac.Write(n)
	}
	return mac.Sum(nil)
}

// HandleAuthHandshake runs the mutual key-proof handshake. The client sends
// the magic, its nonce and an HMAC over the transcript so far; the server
// answers with its own nonce and a proof over both nonces, so each side
// verifies the other holds the key. Both sides return the nonce pair that
// seeds the session key.
func HandleAuthHandshake(r *bufio.Reader, w io.Writer, key []byte, isClient bool) (clientNonce, serverNonce []byte, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("handshake: nil reader")
	}
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}
	if isClient {
		if w == nil {
			return nil, nil, fmt.Errorf("handshake: nil writer")
		}
		return clientHandshake(r, w, key)
	}
	return serverHandshake(r, w, key)
}

func clientHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	clientNonce = make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, nil, fmt.Errorf("generate client nonce: %w", err)
	}

	hello := make([]byte, 0, len(HandshakeMagic)+NonceSize+macSize)
	hello = append(hello, HandshakeMagic...)
	hello = append(hello, clientNonce...)
	hello = append(hello, transcriptMAC(key, "client", clientNonce)...)
	if _, err := w.Write(hello); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	status, err := r.ReadByte()
	if err != nil {
		return nil, nil, fmt.Errorf("read handshake response: %w", err)
	}
	if status != statusOK {
		return nil, nil, readServerReject(r, status)
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	serverProof := make([]byte, macSize)
	if _, err := io.ReadFull(r, serverProof); err != nil {
		return nil, nil, fmt.Errorf("read server proof: %w", err)
	}
	if !hmac.Equal(serverProof, transcriptMAC(key, "server", clientNonce, serverNonce)) {
		return nil, nil, fmt.Errorf("server failed key proof")
	}
	return clientNonce, serverNonce, nil
}

// readServerReject turns the server's rejection into an error. A rejecting
// server answers with its usual problem JSON line instead of the status byte.
func readServerReject(r *bufio.Reader, first byte) error {
	rest, _ := io.ReadAll(r)
	line := strings.TrimSuffix(string(append([]byte{first}, rest...)), "\n")
	var apiErr apitypes.ApiError
	if err := json.Unmarshal([]byte(line), &apiErr); err == nil && (apiErr.Status != 0 || apiErr.Title != "") {
		return &apiErr
	}
	return fmt.Errorf("invalid handshake response from server: %s", line)
}

func serverHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if _, err := r.Discard(len(HandshakeMagic)); err != nil {
		return nil, nil, fmt.Errorf("discard handshake magic: %w", err)
	}
	clientNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, clientNonce); err != nil {
		return nil, nil, fmt.Errorf("read client nonce: %w", err)
	}
	clientProof := make([]byte, macSize)
	if _, err := io.ReadFull(r, clientProof); err != nil {
		return nil, nil, fmt.Errorf("read client proof: %w", err)
	}
	if !hmac.Equal(clientProof, transcriptMAC(key, "client", clientNonce)) {
		return nil, nil, apierror.ErrUnauthorized("invalid password")
	}

	if w == nil {
		return nil, nil, fmt.Errorf("write response: write on nil pointer")
	}
	serverNonce = make([]byte, NonceSize)
	if _, err := rand.Read(serverNonce); err != nil {
		return nil, nil, fmt.Errorf("generate server nonce: %w", err)
	}
	resp := make([]byte, 0, 1+NonceSize+macSize)
	resp = append(resp, statusOK)
	resp = append(resp, serverNonce...)
	resp = append(resp, transcriptMAC(key, "server", clientNonce, serverNonce)...)
	if _, err := w.Write(resp); err != nil {
		return nil, nil, fmt.Errorf("write response: %w", err)
	}
	return clientNonce, serverNonce, nil
}
