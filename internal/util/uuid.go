package util

import (
	"github.com/google/uuid"
)

// NewID returns a random (v4) UUID string used for every row this service
// creates.
func NewID() string {
	return uuid.New().String()
}

// ParseID reports whether s is a UUID and returns its canonical lower-case
// form.
func ParseID(s string) (string, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
