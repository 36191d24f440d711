package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadGrant is what a signed download link authorises: one document for one viewer until ExpiresAt.
type DownloadGrant struct {
	DocumentID string
	Subject    string
	ExpiresAt  time.Time
}

// SignedURLSigner issues and verifies HMAC-SHA256 download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a URL-safe token of the form payload.signature.
func (s *SignedURLSigner) Sign(documentID, subject string) (string, time.Time, error) {
	if documentID == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("document id and subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{documentID, subject, strconv.FormatInt(expiresAt.Unix(), 10)}, "|")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.mac(encoded), expiresAt, nil
}

// Verify checks the signature first and then the expiry.
func (s *SignedURLSigner) Verify(token string) (DownloadGrant, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || len(s.secret) == 0 {
		return DownloadGrant{}, ErrTokenInvalid
	}
	if !hmac.Equal([]byte(s.mac(encoded)), []byte(signature)) {
		return DownloadGrant{}, ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return DownloadGrant{}, ErrTokenInvalid
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	grant := DownloadGrant{DocumentID: parts[0], Subject: parts[1], ExpiresAt: time.Unix(exp, 0)}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
