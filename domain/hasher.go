package domain

// Hasher is the core port for any hashing strategy. Used to derive
// cache keys for completion responses.
type Hasher interface {
	Hash(data []byte) string
}
