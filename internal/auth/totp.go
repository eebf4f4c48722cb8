package auth

import (
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "CanteenPOS"

// GenerateTOTPSecret creates a new TOTP key for a user enrolling in 2FA.
// Returns the secret and the otpauth:// provisioning URL for the QR code.
func GenerateTOTPSecret(accountName string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTPCode checks a 6-digit code against the stored secret
func VerifyTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
