// Package altcha wraps the ALTCHA proof-of-work scheme used to gate the
// anonymous endpoints.
package altcha

import (
	"errors"
	"fmt"
	"time"

	altchalib "github.com/altcha-org/altcha-lib-go"
)

var (
	// ErrNotConfigured means the HMAC key is missing from the environment.
	ErrNotConfigured = errors.New("altcha: hmac key is not configured")

	// ErrInvalidChallenge is returned for a missing or failed solution.
	ErrInvalidChallenge = errors.New("altcha: invalid challenge solution")
)

const (
	maxNumber    = 100000
	challengeTTL = 10 * time.Minute
	checkExpiry  = true
)

// Verifier issues and verifies ALTCHA challenges with one HMAC key.
type Verifier struct {
	hmacKey string
}

// NewVerifier constructs a Verifier. An empty key yields a Verifier whose
// methods fail with ErrNotConfigured, so the misconfiguration surfaces on
// use as a server error rather than at startup.
func NewVerifier(hmacKey string) *Verifier {
	return &Verifier{hmacKey: hmacKey}
}

// Challenge creates a fresh challenge for the client-side widget.
func (v *Verifier) Challenge() (altchalib.Challenge, error) {
	if v.hmacKey == "" {
		return altchalib.Challenge{}, ErrNotConfigured
	}
	expires := time.Now().Add(challengeTTL)
	ch, err := altchalib.CreateChallenge(altchalib.ChallengeOptions{
		HMACKey:   v.hmacKey,
		MaxNumber: maxNumber,
		Expires:   &expires,
	})
	if err != nil {
		return altchalib.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}
	return ch, nil
}

// VerifySolution checks a base64 solution payload as submitted by the
// widget. Anything but a clean pass maps to ErrInvalidChallenge.
func (v *Verifier) VerifySolution(payload string) error {
	if v.hmacKey == "" {
		return ErrNotConfigured
	}
	if payload == "" {
		return ErrInvalidChallenge
	}
	ok, err := altchalib.VerifySolution(payload, v.hmacKey, checkExpiry)
	if err != nil || !ok {
		return ErrInvalidChallenge
	}
	return nil
}
