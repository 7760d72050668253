package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/layer-3/walletauth/ports"
	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

var _ ports.Hasher = (*Argon2)(nil)

var (
	ErrInvalidHash  = errors.New("invalid argon2id hash")
	ErrInvalidParam = errors.New("invalid argon2id parameters")
)

// Params are the argon2id cost parameters used for new hashes
type Params struct {
	MemoryKB   uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultParams follow the OWASP argon2id baseline
func DefaultParams() Params {
	return Params{
		MemoryKB:   64 * 1024,
		Time:       1,
		Threads:    4,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Argon2 hashes secrets into PHC strings, e.g.
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2 struct {
	params Params
}

// NewArgon2 creates a new hasher, rejecting parameters too weak to use
func NewArgon2(params Params) (*Argon2, error) {
	if params.MemoryKB < 8 || params.Time < 1 || params.Threads < 1 || params.SaltLength < 8 || params.KeyLength < 16 {
		return nil, ErrInvalidParam
	}
	return &Argon2{params: params}, nil
}

func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, a.params.Time, a.params.MemoryKB, a.params.Threads, a.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.params.MemoryKB,
		a.params.Time,
		a.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encoded.
// A malformed hash is an error, a mismatch is (false, nil).
func (a *Argon2) Verify(secret, encoded string) (bool, error) {
	params, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), salt, params.Time, params.MemoryKB, params.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var params Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return params, nil, nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return params, nil, nil, ErrInvalidHash
	}

	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return params, nil, nil, ErrInvalidHash
		}
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return params, nil, nil, ErrInvalidHash
		}
		switch name {
		case "m":
			params.MemoryKB = uint32(value)
		case "t":
			params.Time = uint32(value)
		case "p":
			if value > 255 {
				return params, nil, nil, ErrInvalidHash
			}
			params.Threads = uint8(value)
		default:
			return params, nil, nil, ErrInvalidHash
		}
	}
	if params.MemoryKB == 0 || params.Time == 0 || params.Threads == 0 {
		return params, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrInvalidHash
	}

	return params, salt, key, nil
}
