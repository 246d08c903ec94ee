// Package otp implements TOTP-based two-factor verification, supplementing
// the Session/Token Engine (C4) per spec §4.4's "TwoFactorRequired" step.
// No library in the example pack implements TOTP, so this is hand-rolled
// against RFC 6238 using only crypto/hmac + crypto/sha1 + encoding/base32 —
// justified in DESIGN.md as a standard-library choice with no ecosystem
// alternative among the teacher's or pack's dependencies.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	defaultDigits = 6
	defaultPeriod = 30 * time.Second
	secretBytes   = 20 // 160 bits, matching the teacher's GenerateTOTPSecret
)

// GenerateSecret returns a fresh base32-encoded TOTP secret.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// GenerateBackupCodes returns count single-use recovery codes formatted
// "XXXX-XXXX".
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, 6)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
		codes[i] = encoded[:4] + "-" + encoded[4:8]
	}
	return codes, nil
}

// Generate computes the TOTP code for secret at instant t, per RFC 6238
// with a 30-second step and 6 digits.
func Generate(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	counter := uint64(t.Unix() / int64(defaultPeriod.Seconds()))
	return hotp(key, counter, defaultDigits), nil
}

// Verify reports whether code matches the TOTP for secret at time t,
// allowing a ±1 step clock-skew window (90 seconds total).
func Verify(secret, code string, t time.Time) (bool, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}
	counter := uint64(t.Unix() / int64(defaultPeriod.Seconds()))
	for _, skew := range []int64{0, -1, 1} {
		c := uint64(int64(counter) + skew)
		if hotp(key, c, defaultDigits) == code {
			return true, nil
		}
	}
	return false, nil
}

func decodeSecret(secret string) ([]byte, error) {
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
}

func hotp(key []byte, counter uint64, digits int) string {
	msg := make([]byte, 8)
	binary.BigEndian.PutUint64(msg, counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(math.Pow10(digits))
	return fmt.Sprintf("%0*d", digits, truncated%mod)
}
