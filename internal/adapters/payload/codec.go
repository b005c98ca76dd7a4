// Package payload encodes snapshots for the shared blob. The wire format is
// JSON compressed with gzip; with a passphrase configured the compressed
// bytes are sealed in an envelope of magic || salt || nonce || ciphertext
// using a scrypt-derived XChaCha20-Poly1305 key. Decode accepts sealed,
// gzip-compressed, and raw JSON payloads.
package payload

import (
	"bytes"
	"compress/gzip"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/felixgeelhaar/sous/internal/domain/snapshot"
)

// Errors returned by the codec.
var (
	ErrNilSnapshot      = errors.New("payload: snapshot is nil")
	ErrEmptyPayload     = errors.New("payload: empty payload")
	ErrEncrypted        = errors.New("payload: payload is encrypted and no passphrase is configured")
	ErrWrongPassphrase  = errors.New("payload: wrong passphrase for encrypted payload")
	ErrTruncatedPayload = errors.New("payload: sealed payload is truncated")
	ErrFormatTooNew     = errors.New("payload: snapshot format version is newer than this build supports")
)

// sealMagic prefixes encrypted payloads. The trailing digit versions the
// envelope so key derivation parameters can change later.
var sealMagic = []byte("sous1")

// scrypt parameters for passphrase key derivation.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	saltSize = 16
)

// Codec encodes and decodes snapshot payloads.
type Codec struct {
	passphrase []byte
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithPassphrase enables encryption. Encode seals its output and Decode can
// open sealed payloads.
func WithPassphrase(passphrase string) CodecOption {
	return func(c *Codec) {
		if passphrase != "" {
			c.passphrase = []byte(passphrase)
		}
	}
}

// NewCodec creates a Codec with the given options.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode serializes the snapshot to compressed (and, with a passphrase,
// sealed) bytes. The input is not mutated; nil collections are written as
// empty arrays so every payload carries all five collections.
func (c *Codec) Encode(snap *snapshot.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	normalized := snap.Clone()
	normalized.Normalize()

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	if len(c.passphrase) == 0 {
		return buf.Bytes(), nil
	}
	return c.seal(buf.Bytes())
}

// Decode parses a payload produced by Encode. It also accepts payloads from
// older builds that wrote plain gzip or uncompressed JSON.
func (c *Codec) Decode(data []byte) (*snapshot.Snapshot, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if bytes.HasPrefix(data, sealMagic) {
		opened, err := c.open(data)
		if err != nil {
			return nil, err
		}
		data = opened
	}

	if isGzip(data) {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = gr.Close() }()

		decompressed, err := io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		data = decompressed
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Version > snapshot.FormatVersion {
		return nil, fmt.Errorf("%w: got version %d, supports up to %d",
			ErrFormatTooNew, snap.Version, snapshot.FormatVersion)
	}

	snap.Normalize()
	return &snap, nil
}

// seal encrypts plain with a key derived from the passphrase and a fresh
// salt. Layout: magic || salt || nonce || ciphertext.
func (c *Codec) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

// open decrypts a sealed payload.
func (c *Codec) open(data []byte) ([]byte, error) {
	if len(c.passphrase) == 0 {
		return nil, ErrEncrypted
	}

	body := data[len(sealMagic):]
	if len(body) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, ErrTruncatedPayload
	}

	salt := body[:saltSize]
	nonce := body[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := body[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return aead, nil
}

// isGzip reports whether data starts with the gzip magic bytes.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
