package wire

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

var (
	// ErrChannelUnavailable is returned while the key exchange has not
	// completed (or after teardown). In multiplayer mode this is fatal:
	// no price data may be read and no trade may be placed through a
	// channel in this state.
	ErrChannelUnavailable = errors.New("encrypted channel not established")
	// ErrDecryptFailed is returned for frames that do not authenticate.
	ErrDecryptFailed = errors.New("message failed to decrypt")
)

const nonceSize = 24

// Channel seals and opens envelopes for one host-client pair. It starts
// disabled and fails closed: both directions reject traffic until
// Establish succeeds, and again after Close.
type Channel struct {
	mu      sync.Mutex
	key     [32]byte
	enabled bool
	sendSeq uint64
	lastSeq uint64
}

// Establish completes the key exchange and enables the channel.
func (c *Channel) Establish(kp KeyPair, peerPublic [32]byte) error {
	key, err := kp.SharedKey(peerPublic)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.enabled = true
	c.sendSeq = 0
	c.lastSeq = 0
	return nil
}

// Enabled reports whether the channel is established.
func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Close disables the channel and wipes the key. Subsequent Seal/Open
// calls fail with ErrChannelUnavailable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = [32]byte{}
	c.enabled = false
}

// Seal encrypts an envelope, assigning it the next sequence number. The
// frame layout is nonce || secretbox(json(envelope)).
func (c *Channel) Seal(env Envelope) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, ErrChannelUnavailable
	}
	c.sendSeq++
	env.Seq = c.sendSeq

	plaintext, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key), nil
}

// Open authenticates and decrypts a frame. It returns the envelope along
// with gap, the number of messages lost since the previous Open (0 when
// none): a receiver seeing gap > 0 must request current state from the
// host rather than continue on stale assumptions.
func (c *Channel) Open(frame []byte) (Envelope, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return Envelope{}, 0, ErrChannelUnavailable
	}
	if len(frame) <= nonceSize {
		return Envelope{}, 0, ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], frame[:nonceSize])
	plaintext, ok := secretbox.Open(nil, frame[nonceSize:], &nonce, &c.key)
	if !ok {
		return Envelope{}, 0, ErrDecryptFailed
	}
	var env Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return Envelope{}, 0, fmt.Errorf("decode envelope: %w", err)
	}

	gap := 0
	if c.lastSeq != 0 && env.Seq > c.lastSeq+1 {
		gap = int(env.Seq - c.lastSeq - 1)
	}
	if env.Seq > c.lastSeq {
		c.lastSeq = env.Seq
	}
	return env, gap, nil
}
