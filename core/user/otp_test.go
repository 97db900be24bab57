package user

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestOTPStore(now *time.Time) *OTPStore {
	s := NewOTPStore(10*time.Minute, 30*time.Minute)
	s.now = func() time.Time { return *now }
	return s
}

func TestOTPStore_flow(t *testing.T) {
	now := time.Now()
	s := newTestOTPStore(&now)

	code, err := s.IssueOTP("admin@test.cd")
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)

	_, err = s.VerifyOTP("admin@test.cd", "000000") // codes start at 100000
	assert.Equal(t, ErrInvalidOTP, err)

	token, err := s.VerifyOTP("admin@test.cd", code)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// OTPs are single use
	_, err = s.VerifyOTP("admin@test.cd", code)
	assert.Equal(t, ErrInvalidOTP, err)

	email, err := s.ResetEmail(token)
	assert.NoError(t, err)
	assert.Equal(t, "admin@test.cd", email)

	s.ConsumeResetToken(token)
	_, err = s.ResetEmail(token)
	assert.Equal(t, ErrInvalidResetToken, err)
}

func TestOTPStore_expiry(t *testing.T) {
	now := time.Now()
	s := newTestOTPStore(&now)

	code, err := s.IssueOTP("a@test.cd")
	assert.NoError(t, err)
	now = now.Add(10 * time.Minute)
	_, err = s.VerifyOTP("a@test.cd", code)
	assert.Equal(t, ErrInvalidOTP, err)

	code, _ = s.IssueOTP("b@test.cd")
	token, err := s.VerifyOTP("b@test.cd", code)
	assert.NoError(t, err)
	now = now.Add(31 * time.Minute)
	_, err = s.ResetEmail(token)
	assert.Equal(t, ErrInvalidResetToken, err)
}

func TestOTPStore_Purge(t *testing.T) {
	now := time.Now()
	s := newTestOTPStore(&now)

	_, _ = s.IssueOTP("a@test.cd")
	code, _ := s.IssueOTP("b@test.cd")
	_, _ = s.VerifyOTP("b@test.cd", code)
	assert.Equal(t, 0, s.Purge())

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, s.Purge()) // otp of a@
	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, s.Purge()) // reset token of b@
	assert.Empty(t, s.otps)
	assert.Empty(t, s.resets)
}
