package encryption

import (
	"crypto/aes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBank = `{"questions":[{"question":"2+2?","options":["1","2","3","4"],"correctAnswer":4}]}`

func mustKey(t *testing.T) string {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

func TestGenerateKey(t *testing.T) {
	k1 := mustKey(t)
	k2 := mustKey(t)

	assert.Len(t, k1, 64)
	assert.Equal(t, strings.ToLower(k1), k1)
	assert.NotEqual(t, k1, k2)
}

func TestAtRestRoundTrip(t *testing.T) {
	key := mustKey(t)

	env, err := EncryptAtRest([]byte(sampleBank), key)
	require.NoError(t, err)

	parts := strings.Split(env, ":")
	require.Len(t, parts, 2)
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, 16)

	got, err := DecryptAtRest(env, key)
	require.NoError(t, err)
	assert.Equal(t, PayloadStructured, got.Kind())
	doc, ok := got.Structured()
	require.True(t, ok)
	assert.JSONEq(t, sampleBank, string(doc))
}

func TestEncryptUsesFreshIV(t *testing.T) {
	key := mustKey(t)

	a, err := EncryptAtRest([]byte(sampleBank), key)
	require.NoError(t, err)
	b, err := EncryptAtRest([]byte(sampleBank), key)
	require.NoError(t, err)

	assert.NotEqual(t, strings.Split(a, ":")[0], strings.Split(b, ":")[0])
}

func TestEnvelopeRoundTrip(t *testing.T) {
	key := mustKey(t)

	env, err := EncryptEnvelope([]byte(sampleBank), key)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.NotZero(t, env.Timestamp)

	got, err := DecryptEnvelope(env, key)
	require.NoError(t, err)
	assert.Equal(t, sampleBank, got.Raw())
}

func TestDecryptRawPlaintext(t *testing.T) {
	key := mustKey(t)

	env, err := EncryptAtRest([]byte("not json at all"), key)
	require.NoError(t, err)

	got, err := DecryptAtRest(env, key)
	require.NoError(t, err)
	assert.Equal(t, PayloadRaw, got.Kind())
	_, ok := got.Structured()
	assert.False(t, ok)
	assert.Equal(t, "not json at all", got.Raw())
}

func TestDecryptWrongKey(t *testing.T) {
	key := mustKey(t)
	env, err := EncryptEnvelope([]byte(sampleBank), key)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		got, err := DecryptEnvelope(env, mustKey(t))
		if err != nil {
			assert.ErrorIs(t, err, ErrDecryption)
			continue
		}
		assert.NotEqual(t, sampleBank, got.Raw())
		assert.Equal(t, PayloadRaw, got.Kind())
	}
}

func TestBinaryPlaintextRoundTrip(t *testing.T) {
	key := mustKey(t)
	plain := []byte{0xff, 0xfe, 0x00, 0x80, 0xc3, 0x28}

	env, err := EncryptAtRest(plain, key)
	require.NoError(t, err)

	got, err := DecryptAtRest(env, key)
	require.NoError(t, err)
	assert.Equal(t, PayloadRaw, got.Kind())
	assert.Equal(t, plain, got.Bytes())

	wire, err := EncryptEnvelope(plain, key)
	require.NoError(t, err)
	got, err = DecryptEnvelope(wire, key)
	require.NoError(t, err)
	assert.Equal(t, plain, got.Bytes())
}

func TestDecryptCorrupted(t *testing.T) {
	key := mustKey(t)
	env, err := EncryptEnvelope([]byte(sampleBank), key)
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	require.NoError(t, err)
	// Flipping the penultimate block's last byte flips the padding byte.
	ct[len(ct)-aes.BlockSize-1] ^= 0xff
	env.EncryptedData = base64.StdEncoding.EncodeToString(ct)

	_, err = DecryptEnvelope(env, key)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptMalformed(t *testing.T) {
	key := mustKey(t)

	cases := map[string]string{
		"no delimiter":  "abcdef",
		"empty iv":      ":AAAA",
		"bad base64":    "!!!:???",
		"short iv":      base64.StdEncoding.EncodeToString([]byte("short")) + ":" + base64.StdEncoding.EncodeToString(make([]byte, 16)),
		"misaligned ct": base64.StdEncoding.EncodeToString(make([]byte, 16)) + ":" + base64.StdEncoding.EncodeToString(make([]byte, 10)),
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecryptAtRest(env, key)
			assert.ErrorIs(t, err, ErrDecryption)
		})
	}

	_, err := DecryptEnvelope(&Envelope{IV: "x"}, key)
	assert.ErrorIs(t, err, ErrDecryption)
	_, err = DecryptEnvelope(nil, key)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestWrongKeyLength(t *testing.T) {
	_, err := EncryptAtRest([]byte("x"), "abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	env, err := EncryptAtRest([]byte("x"), mustKey(t))
	require.NoError(t, err)
	_, err = DecryptAtRest(env, "zz")
	assert.ErrorIs(t, err, ErrDecryption)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
