package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignedURLSigner creates and validates signed blob download tokens.
// Tokens carry no expiry so locators persisted in profiles stay valid;
// previous secrets keep older tokens readable after a rotation.
type SignedURLSigner struct {
	secret   []byte
	previous [][]byte
}

// NewSignedURLSigner constructs a signer that signs with secret and also accepts tokens signed with previous.
func NewSignedURLSigner(secret string, previous ...string) *SignedURLSigner {
	s := &SignedURLSigner{secret: []byte(secret)}
	for _, p := range previous {
		if p = strings.TrimSpace(p); p != "" && p != secret {
			s.previous = append(s.previous, []byte(p))
		}
	}
	return s
}

// Generate returns a signed token referencing the blob handle and its storage path.
func (s *SignedURLSigner) Generate(handleID, relPath string) (string, error) {
	if handleID == "" || relPath == "" {
		return "", fmt.Errorf("handle id and path required")
	}
	if strings.Contains(handleID, ".") {
		return "", fmt.Errorf("handle id must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	return strings.Join([]string{handleID, encodedPath, sign(s.secret, handleID, encodedPath)}, "."), nil
}

// Parse validates a token and returns the embedded metadata.
func (s *SignedURLSigner) Parse(token string) (handleID, relPath string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("invalid token format")
	}
	handleID, encodedPath, signature := parts[0], parts[1], parts[2]

	if !s.verify(handleID, encodedPath, signature) {
		return "", "", fmt.Errorf("invalid token signature")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", fmt.Errorf("decode path: %w", err)
	}
	return handleID, string(rawPath), nil
}

func (s *SignedURLSigner) verify(handleID, encodedPath, signature string) bool {
	if len(s.secret) > 0 && hmac.Equal([]byte(sign(s.secret, handleID, encodedPath)), []byte(signature)) {
		return true
	}
	for _, key := range s.previous {
		if hmac.Equal([]byte(sign(key, handleID, encodedPath)), []byte(signature)) {
			return true
		}
	}
	return false
}

func sign(key []byte, handleID, encodedPath string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(handleID + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
