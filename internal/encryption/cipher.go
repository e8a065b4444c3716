// Package encryption implements the AES-256-CBC primitives used to protect
// question banks, both at rest in PostgreSQL and on the content store.
//
// Two envelope formats exist:
//
//   - At-rest: "base64(iv):base64(ciphertext)", stored in a single column.
//   - Published: a JSON object {iv, encryptedData, timestamp, version} that
//     travels through the schema-less content store.
//
// Keys are 256-bit values encoded as 64 lowercase hex characters. A fresh
// random IV is generated on every encryption.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// EnvelopeVersion is written into every published envelope.
	EnvelopeVersion = "1.0"

	atRestSeparator = ":"
)

var (
	// ErrDecryption is returned (wrapped) by every decrypt failure: malformed
	// envelope, wrong key length, misaligned ciphertext or bad padding.
	ErrDecryption = errors.New("decryption failed")
	// ErrInvalidKey reports a key that is not 64 hex characters.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// Envelope is the published envelope stored on the content store.
type Envelope struct {
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
	Timestamp     int64  `json:"timestamp"`
	Version       string `json:"version"`
}

// GenerateKey returns a new random 256-bit key as 64 lowercase hex characters.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("read random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// EncryptAtRest encrypts plaintext into the "iv:ciphertext" at-rest format.
func EncryptAtRest(plaintext []byte, keyHex string) (string, error) {
	iv, ct, err := encrypt(plaintext, keyHex)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(iv) + atRestSeparator + base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptAtRest reverses EncryptAtRest.
func DecryptAtRest(envelope, keyHex string) (DecryptedPayload, error) {
	ivPart, ctPart, ok := strings.Cut(envelope, atRestSeparator)
	if !ok || ivPart == "" || ctPart == "" {
		return DecryptedPayload{}, fmt.Errorf("%w: malformed at-rest envelope", ErrDecryption)
	}
	return decryptParts(ivPart, ctPart, keyHex)
}

// EncryptEnvelope encrypts plaintext into a published Envelope.
func EncryptEnvelope(plaintext []byte, keyHex string) (*Envelope, error) {
	iv, ct, err := encrypt(plaintext, keyHex)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		IV:            base64.StdEncoding.EncodeToString(iv),
		EncryptedData: base64.StdEncoding.EncodeToString(ct),
		Timestamp:     time.Now().UnixMilli(),
		Version:       EnvelopeVersion,
	}, nil
}

// DecryptEnvelope reverses EncryptEnvelope.
func DecryptEnvelope(env *Envelope, keyHex string) (DecryptedPayload, error) {
	if env == nil || env.IV == "" || env.EncryptedData == "" {
		return DecryptedPayload{}, fmt.Errorf("%w: malformed envelope", ErrDecryption)
	}
	return decryptParts(env.IV, env.EncryptedData, keyHex)
}

func encrypt(plaintext []byte, keyHex string) (iv, ciphertext []byte, err error) {
	block, err := newBlock(keyHex)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("read random iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

func decryptParts(ivB64, ctB64, keyHex string) (DecryptedPayload, error) {
	block, err := newBlock(keyHex)
	if err != nil {
		return DecryptedPayload{}, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil || len(iv) != aes.BlockSize {
		return DecryptedPayload{}, fmt.Errorf("%w: invalid iv", ErrDecryption)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return DecryptedPayload{}, fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryption)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return DecryptedPayload{}, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryption)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return DecryptedPayload{}, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	// Padding is the only integrity signal: a wrong key still passes it
	// about once in 256 tries and yields a Raw payload of noise.
	return newPayload(plain), nil
}

func newBlock(keyHex string) (cipher.Block, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not hex", ErrInvalidKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return aes.NewCipher(key)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
