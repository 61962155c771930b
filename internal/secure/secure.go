// Package secure negotiates a per-connection channel key via X25519 and
// seals control traffic with ChaCha20-Poly1305. Each side generates an
// ephemeral key pair, trades public values, and reduces the shared secret to
// a fixed-length symmetric key through HKDF.
package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the channel key length in bytes.
const KeySize = chacha20poly1305.KeySize

// hkdfInfo binds derived keys to this protocol.
var hkdfInfo = []byte("matchpoint channel key v1")

var (
	// ErrBadPublicKey reports a remote public value of the wrong length.
	ErrBadPublicKey = errors.New("secure: public key must be 32 bytes")
	// ErrCiphertextShort reports sealed data too small to contain a nonce.
	ErrCiphertextShort = errors.New("secure: ciphertext shorter than nonce")
	// ErrDecrypt reports an authentication failure on open.
	ErrDecrypt = errors.New("secure: message authentication failed")
)

// Exchange is one side of a key negotiation. It holds an ephemeral private
// value that never leaves the process.
type Exchange struct {
	private [curve25519.ScalarSize]byte
	public  [curve25519.PointSize]byte
}

// NewExchange generates an ephemeral key pair.
func NewExchange() (*Exchange, error) {
	e := &Exchange{}
	if _, err := rand.Read(e.private[:]); err != nil {
		return nil, fmt.Errorf("generate private value: %w", err)
	}
	pub, err := curve25519.X25519(e.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public value: %w", err)
	}
	copy(e.public[:], pub)
	return e, nil
}

// PublicKey returns the local public value to send to the peer.
func (e *Exchange) PublicKey() []byte {
	out := make([]byte, len(e.public))
	copy(out, e.public[:])
	return out
}

// SharedKey combines the remote public value with the local private value and
// derives the channel key. Both sides arrive at the same key.
func (e *Exchange) SharedKey(remotePublic []byte) ([]byte, error) {
	if len(remotePublic) != curve25519.PointSize {
		return nil, ErrBadPublicKey
	}
	secret, err := curve25519.X25519(e.private[:], remotePublic)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}
	key := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive channel key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key. The random nonce is prepended to the
// returned ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal with the same key.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
