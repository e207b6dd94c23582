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

const (
	// MinPasswordBytes is the shortest plaintext Hash accepts.
	MinPasswordBytes = 8
	// DefaultMaxPasswordBytes caps plaintext length when Config leaves it zero.
	DefaultMaxPasswordBytes = 1024

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

var (
	// ErrTooShort is returned by Hash for passwords under MinPasswordBytes.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinPasswordBytes)
	// ErrTooLong is returned when a password exceeds the configured maximum.
	ErrTooLong = errors.New("password exceeds maximum length")
	// ErrInvalidHash is returned when a stored hash is not a supported PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns interactive-login parameters (64 MiB, t=3, p=2).
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash returns ErrTooShort or ErrTooLong for out-of-range input and otherwise
// a PHC string with a fresh random salt. Plaintext bytes are used exactly as
// given.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. A malformed hash
// yields an error wrapping ErrInvalidHash; a mismatch is (false, nil).
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrTooLong
	}
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's current ones.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.hash)), nil
}

func invalidHash(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, reason)
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, invalidHash("format")
	}
	if parts[1] != algorithmID {
		return nil, invalidHash("algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, invalidHash("version")
	}
	if version != argon2.Version {
		return nil, invalidHash("unsupported version")
	}

	parsed := &parsedPHC{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	if parsed.salt, err = decodeB64(parts[4]); err != nil || len(parsed.salt) < int(minSaltLength) {
		return nil, invalidHash("salt")
	}
	if parsed.hash, err = decodeB64(parts[5]); err != nil || len(parsed.hash) == 0 {
		return nil, invalidHash("hash")
	}
	return parsed, nil
}

// decodeB64 accepts both raw and padded standard base64.
func decodeB64(value string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
}

func parseParams(part string, out *parsedPHC) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return invalidHash("parameters")
	}

	seen := map[string]bool{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return invalidHash("parameter entry")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return invalidHash("memory")
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return invalidHash("time")
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return invalidHash("parallelism")
			}
			out.parallelism = uint8(v)
		default:
			return invalidHash("unsupported parameter")
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < MinPasswordBytes:
		return fmt.Errorf("password max bytes must be >= %d", MinPasswordBytes)
	}
	return nil
}
