package password

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"
	phcVersion   = argon2.Version
)

var phcEncoding = base64.RawStdEncoding

// phcHash is a decoded $argon2id$ string. Params carries the salt and key
// lengths actually present so callers can compare it against a Config.
type phcHash struct {
	Params Argon2idParams
	Salt   []byte
	Key    []byte
}

func derive(password string, p Argon2idParams, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
}

func (h phcHash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, phcVersion,
		h.Params.MemoryKiB, h.Params.Iterations, h.Params.Parallelism,
		phcEncoding.EncodeToString(h.Salt), phcEncoding.EncodeToString(h.Key),
	)
}

// matches recomputes the key for password with the stored parameters.
func (h phcHash) matches(password string) bool {
	return subtle.ConstantTimeCompare(derive(password, h.Params, h.Salt), h.Key) == 1
}

// parsePHC decodes s. Every failure is ErrInvalidHash.
func parsePHC(s string) (phcHash, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != phcAlgorithm {
		return phcHash{}, ErrInvalidHash
	}
	if fields[2] != "v="+strconv.Itoa(phcVersion) {
		return phcHash{}, ErrInvalidHash
	}

	var h phcHash
	seen := 0
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return phcHash{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			return phcHash{}, ErrInvalidHash
		}
		switch name {
		case "m":
			h.Params.MemoryKiB = uint32(n)
		case "t":
			h.Params.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return phcHash{}, ErrInvalidHash
			}
			h.Params.Parallelism = uint8(n)
		default:
			return phcHash{}, ErrInvalidHash
		}
		seen++
	}
	if seen != 3 || h.Params.MemoryKiB == 0 || h.Params.Iterations == 0 || h.Params.Parallelism == 0 {
		return phcHash{}, ErrInvalidHash
	}

	var err error
	if h.Salt, err = phcEncoding.DecodeString(fields[4]); err != nil {
		return phcHash{}, ErrInvalidHash
	}
	if h.Key, err = phcEncoding.DecodeString(fields[5]); err != nil {
		return phcHash{}, ErrInvalidHash
	}
	h.Params.SaltLength = uint32(len(h.Salt)) // #nosec G115 -- bounded by the input length.
	h.Params.KeyLength = uint32(len(h.Key))   // #nosec G115
	return h, nil
}

// exceeds reports whether stored parameters are too expensive or oddly
// sized to be worth computing under the limits of cfg.
func (p Argon2idParams) exceeds(cfg Argon2idParams) bool {
	return p.MemoryKiB > cfg.MemoryKiB*2 ||
		p.Iterations > cfg.Iterations*2 ||
		uint32(p.Parallelism) > uint32(cfg.Parallelism)*2 ||
		p.SaltLength < 8 || p.SaltLength > 64 ||
		p.KeyLength < 16 || p.KeyLength > 128
}

// weakerThan reports whether p costs less than cfg.
func (p Argon2idParams) weakerThan(cfg Argon2idParams) bool {
	return p.MemoryKiB < cfg.MemoryKiB || p.Iterations < cfg.Iterations
}
