package quote

import (
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLength = 10
)

// IDGenerator produces item identifiers.
type IDGenerator func(now time.Time) (string, error)

// NewID returns a base-36 millisecond timestamp followed by a random suffix.
func NewID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, idSuffixLength)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix, nil
}
