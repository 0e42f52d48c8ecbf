package memory

import "golang.org/x/crypto/bcrypt"

// BcryptHasher is the default password verifier.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), h.cost)
}

func (h *BcryptHasher) Verify(secret []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(secret, []byte(password)) == nil
}
