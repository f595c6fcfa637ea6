package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tandarun/coach/domain"
)

type SHA256 struct{}

func NewSHA256() *SHA256 {
	return &SHA256{}
}

func (h *SHA256) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ domain.Hasher = (*SHA256)(nil)
