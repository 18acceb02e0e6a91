// Package wire defines the encrypted broadcast protocol between the host
// and its clients: an X25519 key exchange, secretbox-sealed envelopes, and
// the message payloads they carry. Every sealed envelope includes a
// sequence number and the game clock so receivers can detect a missed
// message and request current state instead of silently drifting.
package wire

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is one side's ephemeral X25519 key pair, generated per session.
type KeyPair struct {
	Public  [32]byte
	private [32]byte
}

func NewKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.private[:]); err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedKey derives the symmetric channel key from our private key and the
// peer's public key. Both sides arrive at the same 32 bytes; the raw DH
// output is hashed before use as a secretbox key.
func (kp KeyPair) SharedKey(peerPublic [32]byte) ([32]byte, error) {
	var key [32]byte
	secret, err := curve25519.X25519(kp.private[:], peerPublic[:])
	if err != nil {
		return key, fmt.Errorf("key exchange: %w", err)
	}
	key = sha256.Sum256(secret)
	return key, nil
}
