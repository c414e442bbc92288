package newsroom

import "github.com/google/uuid"

// GenerateID returns a prefixed unique identifier for a new record.
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
