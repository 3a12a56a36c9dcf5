package internal

import (
	"strconv"
	"testing"
)

func TestNewNumericIDRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id, err := NewNumericID(14)
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(id) != 14 {
			t.Fatalf("expected 14 digits, got %q", id)
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		if n < 10000000000000 || n > 99999999999999 {
			t.Fatalf("id out of range: %d", n)
		}
	}
}

func TestNewNumericIDRejectsBadWidth(t *testing.T) {
	for _, digits := range []int{0, 1, 19} {
		if _, err := NewNumericID(digits); err == nil {
			t.Fatalf("expected error for %d digits", digits)
		}
	}
}
