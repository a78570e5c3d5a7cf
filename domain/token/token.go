// Package token implements the opaque continuation token clients carry
// between polls. The token is a convenience mechanism, not a security
// boundary: it is reversible base64url over a delimited string and must be
// treated as untrusted input on every request.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const delimiter = "|"

// ErrMalformed is returned when a token cannot be decoded. Callers should
// treat it as a client error and never retry.
var ErrMalformed = errors.New("malformed continuation token")

// Token carries everything the server needs to resume polling without
// server-side session state.
type Token struct {
	InstanceID string
	JobID      string
	Attempt    int
}

// Encode renders the token as an unpadded URL-safe base64 string.
func (t Token) Encode() string {
	raw := strings.Join([]string{t.InstanceID, t.JobID, strconv.Itoa(t.Attempt)}, delimiter)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Next returns the token to hand back on a still-running poll response.
func (t Token) Next() Token {
	return Token{InstanceID: t.InstanceID, JobID: t.JobID, Attempt: t.Attempt + 1}
}

// Decode parses an encoded token. It fails with ErrMalformed when the base64
// is invalid, the field count is wrong, or the attempt counter is not a
// non-negative integer.
func Decode(encoded string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	parts := strings.Split(string(raw), delimiter)
	if len(parts) != 3 {
		return Token{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformed, len(parts))
	}

	attempt, err := strconv.Atoi(parts[2])
	if err != nil || attempt < 0 {
		return Token{}, fmt.Errorf("%w: invalid attempt count %q", ErrMalformed, parts[2])
	}

	return Token{InstanceID: parts[0], JobID: parts[1], Attempt: attempt}, nil
}
