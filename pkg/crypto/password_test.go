package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(digest, "secret123"); err != nil {
		t.Fatalf("expected digest to verify: %v", err)
	}
	if err := h.Compare(digest, "secret124"); err == nil {
		t.Fatalf("expected mismatched plaintext to fail")
	}
}

func TestHashIsSelfDescribing(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(string(digest), "$2") {
		t.Fatalf("expected bcrypt digest prefix, got %q", digest)
	}
	// A hasher constructed with a different cost still verifies old digests.
	other := NewHasher(bcrypt.MinCost + 1)
	if err := other.Compare(digest, "secret123"); err != nil {
		t.Fatalf("expected digest to verify across costs: %v", err)
	}
}

func TestHashSaltsEachDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	first, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if string(first) == string(second) {
		t.Fatalf("expected distinct salts to produce distinct digests")
	}
}

func TestNewHasherRejectsOutOfRangeCost(t *testing.T) {
	h := NewHasher(99)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost fallback, got %d", h.cost)
	}
}
