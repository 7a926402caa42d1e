package password

import (
	"fmt"
	"math"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords. Lengths count runes.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig matches the account rules of the public API: 6..20 characters.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 6,
			MaxLength: 20,
		},
	}
}

// Overrides carries operator-provided cost settings. Zero fields keep the default.
type Overrides struct {
	MinLength   int
	MaxLength   int
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint32
}

// Apply returns c with o applied, validating ranges.
func (c Config) Apply(o Overrides) (Config, error) {
	if o.MinLength != 0 {
		if o.MinLength < 1 || o.MinLength > 1024 {
			return Config{}, fmt.Errorf("password min length: out of range [1..1024]")
		}
		c.Policy.MinLength = o.MinLength
	}
	if o.MaxLength != 0 {
		if o.MaxLength < 1 || o.MaxLength > 4096 {
			return Config{}, fmt.Errorf("password max length: out of range [1..4096]")
		}
		c.Policy.MaxLength = o.MaxLength
	}
	if o.MemoryKiB != 0 {
		if o.MemoryKiB < 8*1024 || o.MemoryKiB > 1024*1024 {
			return Config{}, fmt.Errorf("argon2 memory: out of range [%d..%d]", 8*1024, 1024*1024)
		}
		c.Params.MemoryKiB = o.MemoryKiB
	}
	if o.Iterations != 0 {
		if o.Iterations > 20 {
			return Config{}, fmt.Errorf("argon2 iterations: out of range [1..20]")
		}
		c.Params.Iterations = o.Iterations
	}
	if o.Parallelism != 0 {
		if o.Parallelism > math.MaxUint8 {
			return Config{}, fmt.Errorf("argon2 parallelism: out of range [1..%d]", math.MaxUint8)
		}
		c.Params.Parallelism = uint8(o.Parallelism)
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return c, nil
}
