package generation

import (
	"fmt"

	"github.com/google/uuid"
)

// NewCorrelationID returns a random (v4) UUID used to match an asynchronous
// result to the request that produced it.
func NewCorrelationID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate correlation id: %w", err)
	}
	return id.String(), nil
}

// IsCorrelationID reports whether id is a well-formed UUID.
func IsCorrelationID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
