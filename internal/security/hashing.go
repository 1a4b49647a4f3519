package security

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies user credentials with bcrypt. The concrete
// algorithm is an implementation detail of this type; callers only see
// Hash/Compare.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the
// valid 4-31 range. Cost 12 is a reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a storable hash of the credential. Do not log or persist
// the plaintext.
func (h *Hasher) Hash(credential []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(credential, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies the credential against the stored hash in constant time.
// Returns nil on match.
func (h *Hasher) Compare(hash string, credential []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), credential)
}
