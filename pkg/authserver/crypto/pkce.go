// Package crypto holds the PKCE primitives used by the authorization server.
package crypto

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// GeneratePKCEVerifier generates a cryptographically random code_verifier
// per RFC 7636 Section 4.1. It delegates to oauth2.GenerateVerifier and
// panics on crypto/rand read failure.
func GeneratePKCEVerifier() string {
	return oauth2.GenerateVerifier()
}

// ComputePKCEChallenge computes the S256 code_challenge from a code_verifier
// per RFC 7636 Section 4.2: BASE64URL-NOPAD(SHA256(code_verifier)).
func ComputePKCEChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyPKCE recomputes the challenge for the presented verifier and compares
// it to the stored challenge in constant time.
func VerifyPKCE(verifier, storedChallenge string) bool {
	computed := ComputePKCEChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}
