package crypto

import "golang.org/x/crypto/bcrypt"

// Hasher derives and verifies bcrypt password digests. The digest embeds the
// algorithm version, cost, and salt, so verification needs no stored metadata.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher with the provided work factor. A cost outside
// bcrypt's supported range falls back to the library default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash derives a salted digest from plaintext.
func (h Hasher) Hash(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), h.cost)
}

// Compare checks plaintext against a stored digest. The comparison runs in
// constant time relative to the digest contents.
func (h Hasher) Compare(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
