package entity

// AlgorithmScrypt identifies credentials derived with scrypt.
const AlgorithmScrypt = "scrypt"

// Credential is a stored, non-reversible password record.
// It is immutable: a password change produces a new Credential rather than editing this one.
type Credential struct {
	Algorithm string       // Hashing scheme that produced Hash.
	Salt      string       // Base64 (std) encoded random salt.
	Hash      string       // Base64 (std) encoded derived key.
	Params    ScryptParams // Work factors in effect when the record was created.
}

// ScryptParams are the scrypt work factors stored alongside a credential.
type ScryptParams struct {
	N         int // CPU/memory cost, a power of two greater than 1.
	R         int // Block size.
	P         int // Parallelization.
	KeyLength int // Derived key length in bytes.
}

// MemoryBytes is the memory scrypt needs for these parameters: the N-block
// table plus the p-block working buffer, each block 128*r bytes.
func (p ScryptParams) MemoryBytes() int64 {
	return 128 * int64(p.R) * (int64(p.N) + int64(p.P))
}
