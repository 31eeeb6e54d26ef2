package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// Validator answers the engine's credential and origin questions. The join
// secret is held only as its SHA-256 digest; comparisons run in constant
// time over equal-length digests so remote probing cannot learn mismatch
// positions.
type Validator struct {
	secretHash      string
	allowedOrigins  []string
	opsUser         string
	opsPassword     string
	opsPasswordHash string
}

func NewValidator(secret string, allowedOrigins []string, opsUser, opsPassword, opsPasswordHash string) *Validator {
	return &Validator{
		secretHash:      HashSHA256(secret),
		allowedOrigins:  allowedOrigins,
		opsUser:         opsUser,
		opsPassword:     opsPassword,
		opsPasswordHash: opsPasswordHash,
	}
}

func HashSHA256(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// ValidateSecret reports whether the provided join secret matches. Hashing
// first means both sides of the compare are always the same length, so an
// empty or wrong-length input takes the same path as any other mismatch.
func (v *Validator) ValidateSecret(provided string) bool {
	providedHash := HashSHA256(provided)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(v.secretHash)) == 1
}

// OriginAllowed checks the request origin against the allow-list. No Origin
// header means a same-origin or non-browser request and passes; an empty
// allow-list accepts everything.
func (v *Validator) OriginAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(v.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range v.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// CheckOperator verifies the ops credential pair. A bcrypt hash takes
// precedence over a plaintext password; with neither configured the ops
// surface stays closed.
func (v *Validator) CheckOperator(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(HashSHA256(user)), []byte(HashSHA256(v.opsUser))) == 1

	if v.opsPasswordHash != "" {
		return userOK && bcrypt.CompareHashAndPassword([]byte(v.opsPasswordHash), []byte(password)) == nil
	}
	if v.opsPassword != "" {
		passOK := subtle.ConstantTimeCompare([]byte(HashSHA256(password)), []byte(HashSHA256(v.opsPassword))) == 1
		return userOK && passOK
	}
	return false
}
