package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// envelopePrefix marks a payload that holds a sealed entry.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new entries.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open an
	// entry, so keys can be rotated without rewriting old transcripts.
	FallbackKeys [][]byte
}

// sealed is the part of an entry that is hidden from the backend.
type sealed struct {
	Payload string `json:"payload"`
	Output  string `json:"output,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.Journal
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals the payload, output
// and failure of every entry with AES-GCM. Sequence numbers, snapshot pids
// and timestamps stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Journal) ports.Journal {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	plainText, err := json.Marshal(sealed{Payload: entry.Payload, Output: entry.Output, Failure: entry.Failure})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt entry: %w", err)
	}

	envelope := entry
	envelope.Payload = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	envelope.Output = ""
	envelope.Failure = ""

	return m.next.Append(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Pop(ctx context.Context, sessionID string) (domain.Entry, error) {
	envelope, err := m.next.Pop(ctx, sessionID)
	if err != nil {
		return domain.Entry{}, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) Shift(ctx context.Context, sessionID string) (domain.Entry, error) {
	envelope, err := m.next.Shift(ctx, sessionID)
	if err != nil {
		return domain.Entry{}, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) List(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	envelopes, err := m.next.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Entry, len(envelopes))
	for i, envelope := range envelopes {
		if entries[i], err = m.open(envelope); err != nil {
			return nil, fmt.Errorf("entry %d: %w", envelope.Seq, err)
		}
	}
	return entries, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) Sessions(ctx context.Context) ([]string, error) {
	return m.next.Sessions(ctx)
}

func (m *encryptionMiddleware) open(envelope domain.Entry) (domain.Entry, error) {
	encoded, ok := strings.CutPrefix(envelope.Payload, envelopePrefix)
	if !ok {
		// Plain entries are refused, not passed through.
		return domain.Entry{}, errors.New("entry is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to decrypt entry: %w", err)
	}

	var s sealed
	if err := json.Unmarshal(plainText, &s); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal decrypted entry: %w", err)
	}

	entry := envelope
	entry.Payload = s.Payload
	entry.Output = s.Output
	entry.Failure = s.Failure
	return entry, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
