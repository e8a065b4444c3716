package encryption

import "encoding/json"

// PayloadKind tags the shape of a DecryptedPayload.
type PayloadKind int

const (
	// PayloadRaw is plaintext that did not parse as JSON.
	PayloadRaw PayloadKind = iota
	// PayloadStructured is plaintext that parsed as a JSON value.
	PayloadStructured
)

func (k PayloadKind) String() string {
	if k == PayloadStructured {
		return "structured"
	}
	return "raw"
}

// DecryptedPayload is the result of a successful decrypt. Callers switch on
// Kind instead of guessing whether the plaintext was JSON.
type DecryptedPayload struct {
	kind PayloadKind
	data []byte
}

func newPayload(plain []byte) DecryptedPayload {
	if json.Valid(plain) {
		return DecryptedPayload{kind: PayloadStructured, data: plain}
	}
	return DecryptedPayload{kind: PayloadRaw, data: plain}
}

// Kind reports whether the plaintext was JSON.
func (p DecryptedPayload) Kind() PayloadKind { return p.kind }

// Structured returns the JSON document. ok is false for raw payloads.
func (p DecryptedPayload) Structured() (json.RawMessage, bool) {
	if p.kind != PayloadStructured {
		return nil, false
	}
	return json.RawMessage(p.data), true
}

// Raw returns the plaintext as a string regardless of kind.
func (p DecryptedPayload) Raw() string { return string(p.data) }

// Bytes returns the plaintext bytes.
func (p DecryptedPayload) Bytes() []byte { return p.data }
