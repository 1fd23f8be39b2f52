package services

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordScheme     = "pbkdf2-sha512"
	passwordIterations = 100000
	passwordKeyLen     = 64
	passwordSaltLen    = 16

	DefaultPasswordSalt = "taply-salt"
)

// PasswordHasher derives PBKDF2-SHA512 hashes. New hashes use a random
// per-account salt with the deployment secret appended as a pepper; hashes
// written with the deployment salt alone still verify.
type PasswordHasher struct {
	pepper     string
	iterations int
}

func NewPasswordHasher(pepper string) *PasswordHasher {
	if pepper == "" {
		pepper = DefaultPasswordSalt
	}
	return &PasswordHasher{pepper: pepper, iterations: passwordIterations}
}

// Hash returns the encoded form pbkdf2-sha512$<iterations>$<salt hex>$<hash hex>.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := h.derive(password, append(salt, h.pepper...), h.iterations)
	return fmt.Sprintf("%s$%d$%s$%s", passwordScheme, h.iterations, hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// Verify checks password against encoded. needsUpgrade is true when the
// stored hash uses the legacy deployment-wide salt.
func (h *PasswordHasher) Verify(password, encoded string) (ok, needsUpgrade bool) {
	if !strings.HasPrefix(encoded, passwordScheme+"$") {
		want, err := hex.DecodeString(encoded)
		if err != nil || len(want) == 0 {
			return false, false
		}
		got := h.derive(password, []byte(h.pepper), passwordIterations)
		return subtle.ConstantTimeCompare(got, want) == 1, true
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 4 {
		return false, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, false
	}
	want, err := hex.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false, false
	}
	got := h.derive(password, append(salt, h.pepper...), iterations)
	return subtle.ConstantTimeCompare(got, want) == 1, iterations < h.iterations
}

func (h *PasswordHasher) derive(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, passwordKeyLen, sha512.New)
}
