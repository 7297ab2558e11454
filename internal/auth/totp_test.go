package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEncryptionKey = bytes.Repeat([]byte("k"), 32)

func TestNewTOTPManager_KeyLength(t *testing.T) {
	_, err := NewTOTPManager([]byte("too short"), "Paylode")
	assert.Error(t, err)

	_, err = NewTOTPManager(testEncryptionKey, "Paylode")
	assert.NoError(t, err)
}

func TestEnrollAndVerify(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "Paylode")
	require.NoError(t, err)

	enrollment, err := tm.Enroll("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.EncryptedSecret)
	assert.Contains(t, enrollment.ProvisioningURL, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURL, "Paylode")
	assert.NotEmpty(t, enrollment.QRCodePNG)

	// The encrypted blob never contains the raw secret
	secret, err := tm.decryptSecret(enrollment.EncryptedSecret)
	require.NoError(t, err)
	assert.NotContains(t, enrollment.EncryptedSecret, string(secret))

	code, err := totp.GenerateCode(string(secret), time.Now())
	require.NoError(t, err)

	ok, err := tm.VerifyCode(enrollment.EncryptedSecret, code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tm.VerifyCode(enrollment.EncryptedSecret, "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCode_MalformedSecret(t *testing.T) {
	tm, err := NewTOTPManager(testEncryptionKey, "Paylode")
	require.NoError(t, err)

	_, err = tm.VerifyCode("not-base64!!!", "123456")
	assert.Error(t, err)

	_, err = tm.VerifyCode("dG9vc2hvcnQ=", "123456")
	assert.Error(t, err)
}

func TestVerifyCode_WrongKeyFails(t *testing.T) {
	tm1, err := NewTOTPManager(testEncryptionKey, "Paylode")
	require.NoError(t, err)
	tm2, err := NewTOTPManager(bytes.Repeat([]byte("x"), 32), "Paylode")
	require.NoError(t, err)

	enrollment, err := tm1.Enroll("alice@example.com")
	require.NoError(t, err)

	_, err = tm2.VerifyCode(enrollment.EncryptedSecret, "123456")
	assert.Error(t, err)
}
