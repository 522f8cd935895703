package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithm = "argon2id"

// Lower bounds accepted both for configuration and for decoded hashes.
const (
	floorMemoryKB   uint32 = 8 * 1024
	floorTime       uint32 = 1
	floorThreads    uint8  = 1
	floorSaltBytes  uint32 = 16
	floorKeyBytes   uint32 = 16
	DefaultMinBytes        = 8
)

var (
	// ErrTooShort is returned by Hash when the password is below Params.MinLength.
	ErrTooShort = errors.New("password too short")
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Params configures Argon2id cost and the minimum accepted password length.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// DefaultParams returns the production defaults (64 MiB, t=3, p=2).
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   DefaultMinBytes,
	}
}

// Hasher is safe for concurrent use.
type Hasher struct {
	p Params
}

// encoded is a decoded PHC string.
type encoded struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// New validates p and returns a Hasher.
func New(p Params) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{p: p}, nil
}

// Validate reports the first parameter below its floor.
func (p Params) Validate() error {
	switch {
	case p.Memory < floorMemoryKB:
		return fmt.Errorf("password: memory must be >= %d KB", floorMemoryKB)
	case p.Time < floorTime:
		return errors.New("password: time must be >= 1")
	case p.Parallelism < floorThreads:
		return errors.New("password: parallelism must be >= 1")
	case p.SaltLength < floorSaltBytes:
		return fmt.Errorf("password: salt length must be >= %d", floorSaltBytes)
	case p.KeyLength < floorKeyBytes:
		return fmt.Errorf("password: key length must be >= %d", floorKeyBytes)
	case p.MinLength < 1:
		return errors.New("password: min length must be >= 1")
	}
	return nil
}

// MinLength returns the configured minimum password length in bytes.
func (h *Hasher) MinLength() int {
	return h.p.MinLength
}

// Hash derives a new salted Argon2id hash of plain.
//
// Hash returns ErrTooShort when plain is shorter than MinLength. Bytes are
// hashed exactly as given, without Unicode normalization.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < h.p.MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.p.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.p.Time, h.p.Memory, h.p.Parallelism, h.p.KeyLength)
	return format(encoded{
		memory:  h.p.Memory,
		time:    h.p.Time,
		threads: h.p.Parallelism,
		salt:    salt,
		key:     key,
	}), nil
}

// Verify reports whether plain matches stored. The comparison is constant time.
func (h *Hasher) Verify(plain, stored string) (bool, error) {
	enc, err := parse(stored)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(plain), enc.salt, enc.time, enc.memory, enc.threads, uint32(len(enc.key)))
	return subtle.ConstantTimeCompare(key, enc.key) == 1, nil
}

// NeedsRehash reports whether stored was produced with weaker parameters
// than the hasher's, or with a different key length.
func (h *Hasher) NeedsRehash(stored string) (bool, error) {
	enc, err := parse(stored)
	if err != nil {
		return false, err
	}

	weaker := enc.memory < h.p.Memory ||
		enc.time < h.p.Time ||
		enc.threads < h.p.Parallelism ||
		uint32(len(enc.key)) != h.p.KeyLength
	return weaker, nil
}

func format(e encoded) string {
	return "$" + algorithm +
		"$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(e.memory), 10) +
		",t=" + strconv.FormatUint(uint64(e.time), 10) +
		",p=" + strconv.FormatUint(uint64(e.threads), 10) +
		"$" + base64.RawStdEncoding.EncodeToString(e.salt) +
		"$" + base64.RawStdEncoding.EncodeToString(e.key)
}

func parse(s string) (encoded, error) {
	var out encoded

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithm {
		return out, ErrMalformedHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return out, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	seen := 0
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return out, ErrMalformedHash
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return out, fmt.Errorf("%w: parameter %s", ErrMalformedHash, name)
		}
		switch name {
		case "m":
			if uint32(n) < floorMemoryKB {
				return out, fmt.Errorf("%w: memory below floor", ErrMalformedHash)
			}
			out.memory = uint32(n)
		case "t":
			if uint32(n) < floorTime {
				return out, fmt.Errorf("%w: time below floor", ErrMalformedHash)
			}
			out.time = uint32(n)
		case "p":
			if n < uint64(floorThreads) || n > 255 {
				return out, fmt.Errorf("%w: parallelism out of range", ErrMalformedHash)
			}
			out.threads = uint8(n)
		default:
			return out, fmt.Errorf("%w: unknown parameter %s", ErrMalformedHash, name)
		}
		seen++
	}
	if seen != 3 || out.memory == 0 || out.time == 0 || out.threads == 0 {
		return out, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	salt, err := decodeB64(fields[4])
	if err != nil || uint32(len(salt)) < floorSaltBytes {
		return out, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := decodeB64(fields[5])
	if err != nil || len(key) == 0 {
		return out, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	out.salt, out.key = salt, key
	return out, nil
}

// decodeB64 accepts both padded and unpadded standard base64 so hashes
// written by other argon2 encoders still verify.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
