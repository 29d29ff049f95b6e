package auth_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuga-dev/vuga/internal/server/api/auth"
)

func TestIsAuthHandshake(t *testing.T) {
	type testCase struct {
		name           string
		input          string
		expectedResult bool
		expectErr      bool
	}
	testCases := []testCase{
		{
			name:           "handshake magic",
			input:          auth.HandshakeMagic + "rest",
			expectedResult: true,
		},
		{
			name:           "plaintext command",
			input:          "buses\x00",
			expectedResult: false,
		},
		{
			name:      "short prefix",
			input:     "VU",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tc.input))
			result, err := auth.IsAuthHandshake(r)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedResult, result)
		})
	}
}

func TestHandshakeMutual(t *testing.T) {
	key, err := auth.DeriveKey("round-trip")
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	type result struct {
		clientNonce []byte
		serverNonce []byte
		err         error
	}
	clientDone := make(chan result, 1)
	go func() {
		cNonce, sNonce, err := auth.HandleAuthHandshake(
			bufio.NewReader(clientConn), clientConn, key, true)
		clientDone <- result{cNonce, sNonce, err}
	}()

	srvClient, srvServer, err := auth.HandleAuthHandshake(
		bufio.NewReader(serverConn), serverConn, key, false)
	require.NoError(t, err)

	client := <-clientDone
	require.NoError(t, client.err)
	assert.Len(t, srvClient, auth.NonceSize)
	assert.Len(t, srvServer, auth.NonceSize)
	assert.Equal(t, client.clientNonce, srvClient)
	assert.Equal(t, client.serverNonce, srvServer)

	srvSession, err := auth.DeriveSessionKey(key, srvServer, srvClient)
	require.NoError(t, err)
	clientSession, err := auth.DeriveSessionKey(key, client.serverNonce, client.clientNonce)
	require.NoError(t, err)
	assert.Equal(t, srvSession, clientSession)
}

func TestHandshakeWrongPassword(t *testing.T) {
	serverKey, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)
	clientKey, err := auth.DeriveKey("letmein")
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	clientErr := make(chan error, 1)
	go func() {
		_, _, err := auth.HandleAuthHandshake(
			bufio.NewReader(clientConn), clientConn, clientKey, true)
		clientErr <- err
	}()

	_, _, err = auth.HandleAuthHandshake(
		bufio.NewReader(serverConn), serverConn, serverKey, false)
	assert.ErrorContains(t, err, "invalid password")

	// The server side hangs up without a response.
	serverConn.Close()
	assert.Error(t, <-clientErr)
}

func TestHandshakeRejectsForgedServerProof(t *testing.T) {
	key, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	helloLen := len(auth.HandshakeMagic) + auth.NonceSize + 32
	go func() {
		_, _ = io.ReadFull(serverConn, make([]byte, helloLen))
		// Accept status followed by an all-zero nonce and proof.
		resp := make([]byte, 1+auth.NonceSize+32)
		resp[0] = 0x01
		_, _ = serverConn.Write(resp)
	}()

	_, _, err = auth.HandleAuthHandshake(
		bufio.NewReader(clientConn), clientConn, key, true)
	assert.ErrorContains(t, err, "server failed key proof")
}

func TestHandshakeClientParsesProblemReject(t *testing.T) {
	key, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	helloLen := len(auth.HandshakeMagic) + auth.NonceSize + 32
	go func() {
		_, _ = io.ReadFull(serverConn, make([]byte, helloLen))
		fmt.Fprintf(serverConn, `{"status":401,"title":"Unauthorized","detail":"invalid password"}`+"\n")
		serverConn.Close()
	}()

	_, _, err = auth.HandleAuthHandshake(
		bufio.NewReader(clientConn), clientConn, key, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid password")
}

func TestHandshakeServerTruncatedHello(t *testing.T) {
	key, err := auth.DeriveKey("hunter2")
	require.NoError(t, err)

	type testCase struct {
		name        string
		input       string
		expectedErr string
	}
	testCases := []testCase{
		{
			name:        "magic only",
			input:       auth.HandshakeMagic,
			expectedErr: "read client nonce: EOF",
		},
		{
			name:        "short nonce",
			input:       auth.HandshakeMagic + "abc",
			expectedErr: "read client nonce: unexpected EOF",
		},
		{
			name:        "missing proof",
			input:       auth.HandshakeMagic + strings.Repeat("n", auth.NonceSize),
			expectedErr: "read client proof: EOF",
		},
		{
			name:        "truncated magic",
			input:       "VU",
			expectedErr: "discard handshake magic: EOF",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tc.input))
			_, _, err := auth.HandleAuthHandshake(r, io.Discard, key, false)
			assert.EqualError(t, err, tc.expectedErr)
		})
	}
}
