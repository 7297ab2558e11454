package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Current argon2id parameters (OWASP-recommended profile: 19 MiB, t=3, p=1).
// Hashes produced with weaker parameters, and legacy bcrypt hashes, still
// verify but are flagged for rehash.
const (
	Argon2Memory      uint32 = 19 * 1024 // KiB
	Argon2Time        uint32 = 3
	Argon2Parallelism uint8  = 1
	Argon2SaltLength  uint32 = 16
	Argon2KeyLength   uint32 = 32

	MinPasswordLen = 8
	MaxPasswordLen = 128

	argon2AlgorithmID = "argon2id"
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Return generic error to users - never expose specific requirements to prevent enumeration attacks
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
}

// HashPassword hashes a password with the current argon2id parameters and
// returns it in PHC string format.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, Argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2AlgorithmID,
		argon2.Version,
		Argon2Memory,
		Argon2Time,
		Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
// needsRehash is true when the password verified but the hash uses a legacy
// scheme (bcrypt) or weaker-than-current argon2id parameters; the caller is
// responsible for persisting a fresh hash. This is the only place legacy
// migration is decided.
func VerifyPassword(password, encodedHash string) (ok bool, needsRehash bool, err error) {
	if password == "" {
		return false, false, ErrEmptyPassword
	}

	if isBcryptHash(encodedHash) {
		if err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return false, false, nil
			}
			return false, false, err
		}
		return true, true, nil
	}

	params, salt, hash, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.parallelism, uint32(len(hash)))
	if subtle.ConstantTimeCompare(computed, hash) != 1 {
		return false, false, nil
	}

	return true, argon2ParamsBelowCurrent(params, uint32(len(hash))), nil
}

// ValidatePassword enforces strong password requirements
func ValidatePassword(password string) error {
	errs := make([]string, 0)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain at least one digit")
	}
	if !hasSpecial {
		errs = append(errs, "must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "is too common, please choose a more unique password")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}

// isBcryptHash recognizes the legacy bcrypt scheme by its modular prefix.
func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func argon2ParamsBelowCurrent(p argon2Params, keyLength uint32) bool {
	return p.memory < Argon2Memory ||
		p.time < Argon2Time ||
		p.parallelism < Argon2Parallelism ||
		keyLength != Argon2KeyLength
}

// parseArgon2Hash decodes a PHC-format argon2id hash:
// $argon2id$v=19$m=19456,t=3,p=1$<salt>$<hash>
func parseArgon2Hash(encoded string) (argon2Params, []byte, []byte, error) {
	var params argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, fmt.Errorf("malformed password hash")
	}
	if parts[1] != argon2AlgorithmID {
		return params, nil, nil, fmt.Errorf("unsupported hash algorithm %q", parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return params, nil, nil, fmt.Errorf("malformed argon2 version")
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return params, nil, nil, fmt.Errorf("malformed argon2 parameters")
		}
		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return params, nil, nil, fmt.Errorf("malformed argon2 parameter %q", kv[0])
		}
		switch kv[0] {
		case "m":
			params.memory = uint32(v)
		case "t":
			params.time = uint32(v)
		case "p":
			params.parallelism = uint8(v)
		default:
			return params, nil, nil, fmt.Errorf("unknown argon2 parameter %q", kv[0])
		}
	}
	if params.memory == 0 || params.time == 0 || params.parallelism == 0 {
		return params, nil, nil, fmt.Errorf("missing argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed salt encoding")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("malformed hash encoding")
	}
	if len(hash) == 0 {
		return params, nil, nil, fmt.Errorf("empty hash")
	}

	return params, salt, hash, nil
}
