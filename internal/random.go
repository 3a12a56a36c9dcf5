package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

// NewNumericID returns a uniformly random decimal string of exactly digits
// digits with no leading zero.
func NewNumericID(digits int) (string, error) {
	if digits < 2 || digits > 18 {
		return "", errors.New("invalid numeric id digits")
	}

	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	span := big.NewInt(9 * low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(low+n.Int64(), 10), nil
}
