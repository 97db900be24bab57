package user

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
)

var (
	ErrInvalidOTP        = core.NewValidationError(errors.New("invalid or expired OTP"))
	ErrInvalidResetToken = core.NewValidationError(errors.New("invalid or expired reset token"))
)

type otpEntry struct {
	code      string
	expiresAt time.Time
}

type resetEntry struct {
	email     string
	expiresAt time.Time
}

// OTPStore keeps the short-lived password reset secrets: one OTP per email, then one reset token per verified OTP.
// Every read checks the expiry; Purge drops expired entries.
type OTPStore struct {
	mu       sync.Mutex
	otps     map[string]otpEntry   // {email: otp}
	resets   map[string]resetEntry // {token: email}
	otpTTL   time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

func NewOTPStore(otpTTL, resetTTL time.Duration) *OTPStore {
	return &OTPStore{
		otps:     make(map[string]otpEntry),
		resets:   make(map[string]resetEntry),
		otpTTL:   otpTTL,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// IssueOTP generates a 6 digit code for email, replacing any previous one.
func (s *OTPStore) IssueOTP(email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", errors.Wrap(err, "generating otp")
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[email] = otpEntry{code: code, expiresAt: s.now().Add(s.otpTTL)}
	return code, nil
}

// VerifyOTP consumes the OTP of email and returns a reset token.
func (s *OTPStore) VerifyOTP(email, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.otps[email]
	if !ok || entry.code != code {
		return "", ErrInvalidOTP
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.otps, email)
		return "", ErrInvalidOTP
	}
	delete(s.otps, email)

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generating reset token")
	}
	token := hex.EncodeToString(buf)
	s.resets[token] = resetEntry{email: email, expiresAt: s.now().Add(s.resetTTL)}
	return token, nil
}

// ResetEmail returns the email a valid reset token was issued for.
func (s *OTPStore) ResetEmail(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.resets[token]
	if !ok {
		return "", ErrInvalidResetToken
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.resets, token)
		return "", ErrInvalidResetToken
	}
	return entry.email, nil
}

// ConsumeResetToken invalidates token.
func (s *OTPStore) ConsumeResetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resets, token)
}

// Purge drops every expired entry and returns how many were removed.
func (s *OTPStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int
	for email, entry := range s.otps {
		if !now.Before(entry.expiresAt) {
			delete(s.otps, email)
			n++
		}
	}
	for token, entry := range s.resets {
		if !now.Before(entry.expiresAt) {
			delete(s.resets, token)
			n++
		}
	}
	return n
}
