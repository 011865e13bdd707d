package types

import (
	"errors"

	"github.com/awnumar/memguard"
)

// Secret holds a sensitive string (the encfs passphrase) sealed in an
// encrypted memguard enclave. The plaintext only exists in locked buffers
// opened for the lifetime of a single subprocess handoff, and every
// stringer/serializer view of a Secret is redacted.
type Secret struct {
	enclave *memguard.Enclave
}

const redactedPlaceholder = "[redacted]"

// NewSecret seals the given value. The input string itself cannot be wiped
// (Go strings are immutable), so callers should let it fall out of scope
// immediately after sealing.
func NewSecret(value string) *Secret {
	if value == "" {
		return &Secret{}
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// IsZero reports whether no value was sealed.
func (s *Secret) IsZero() bool {
	return s == nil || s.enclave == nil
}

// Open decrypts the secret into a locked buffer. The caller must Destroy()
// the buffer as soon as the plaintext has been handed off.
func (s *Secret) Open() (*memguard.LockedBuffer, error) {
	if s.IsZero() {
		return nil, errors.New("secret is empty")
	}
	return s.enclave.Open()
}

// String implements fmt.Stringer and never reveals the value.
func (s *Secret) String() string {
	if s.IsZero() {
		return ""
	}
	return redactedPlaceholder
}

// MarshalJSON redacts the value in any serialized form.
func (s *Secret) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + redactedPlaceholder + `"`), nil
}
