package auth

import (
	"crypto/hkdf"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
)

const (
	// KeySize is the length of the master key and every key derived from it.
	KeySize = 32

	kdfSalt        = "vuga:key:v1"
	kdfIterations  = 210000
	sessionContext = "vuga:session:v1"
)

// GenerateKey creates a random API password. The base32 alphabet keeps it
// copy-paste safe across shells and config files.
func GenerateKey() (string, error) {
	return rand.Text(), nil
}

// DeriveKey stretches the configured password into the 32-byte master key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password must not be empty")
	}
	return pbkdf2.Key(sha512.New, password, []byte(kdfSalt), kdfIterations, KeySize)
}

// DeriveSessionKey binds the master key to one connection's handshake. The
// nonce pair salts an HKDF extraction so no two sessions share cipher keys.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) ([]byte, error) {
	salt := make([]byte, 0, len(serverNonce)+len(clientNonce))
	salt = append(salt, serverNonce...)
	salt = append(salt, clientNonce...)
	return hkdf.Key(sha256.New, key, salt, sessionContext, KeySize)
}
