package security

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites data with zeros.
func ZeroBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, data, make([]byte, len(data)))
}

// SecureBytes owns a copy of sensitive bytes and zeros them when cleared or
// collected.
type SecureBytes struct {
	data []byte
}

func NewSecureBytes(data []byte) *SecureBytes {
	copied := make([]byte, len(data))
	copy(copied, data)

	sb := &SecureBytes{data: copied}
	runtime.SetFinalizer(sb, (*SecureBytes).zero)
	return sb
}

// Bytes returns the underlying slice. Callers must not retain it past Clear.
func (sb *SecureBytes) Bytes() []byte {
	return sb.data
}

func (sb *SecureBytes) Len() int {
	return len(sb.data)
}

// Copy returns a copy of the data
func (sb *SecureBytes) Copy() []byte {
	result := make([]byte, len(sb.data))
	copy(result, sb.data)
	return result
}

// Clear zeros the data and removes the finalizer.
func (sb *SecureBytes) Clear() {
	sb.zero()
	runtime.SetFinalizer(sb, nil)
}

func (sb *SecureBytes) zero() {
	if sb.data != nil {
		ZeroBytes(sb.data)
		sb.data = nil
	}
}
