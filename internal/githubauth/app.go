package githubauth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const (
	appTokenClockSkewConstant  = time.Minute
	appTokenLifetimeConstant   = 9 * time.Minute
	jwtTypeConstant            = "JWT"
	pemBlockMissingMessage     = "private key is not PEM encoded"
	privateKeyNotRSAMessage    = "private key is not an RSA key"
	appIDMissingMessage        = "GitHub App id must be provided"
	installationMissingMessage = "GitHub App installation id must be provided"
	privateKeyMissingMessage   = "GitHub App private key must be provided"
	privateKeyReadTemplate     = "read GitHub App private key %s: %w"
	appSigningTemplate         = "sign GitHub App token: %w"
)

// AppCredentials identifies a GitHub App installation.
type AppCredentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  []byte
	PrivateKeyPath string
}

// Configured reports whether any App setting was supplied.
func (credentials AppCredentials) Configured() bool {
	return credentials.AppID != 0 || credentials.InstallationID != 0 || len(credentials.PrivateKeyPEM) > 0 || len(strings.TrimSpace(credentials.PrivateKeyPath)) > 0
}

// Validate reports the first missing App setting.
func (credentials AppCredentials) Validate() error {
	switch {
	case credentials.AppID == 0:
		return errors.New(appIDMissingMessage)
	case credentials.InstallationID == 0:
		return errors.New(installationMissingMessage)
	case len(credentials.PrivateKeyPEM) == 0 && len(strings.TrimSpace(credentials.PrivateKeyPath)) == 0:
		return errors.New(privateKeyMissingMessage)
	}
	return nil
}

func (credentials AppCredentials) privateKey() (*rsa.PrivateKey, error) {
	encoded := credentials.PrivateKeyPEM
	if len(encoded) == 0 {
		contents, readError := os.ReadFile(credentials.PrivateKeyPath)
		if readError != nil {
			return nil, fmt.Errorf(privateKeyReadTemplate, credentials.PrivateKeyPath, readError)
		}
		encoded = contents
	}
	return ParsePrivateKey(encoded)
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKey(encoded []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(encoded)
	if block == nil {
		return nil, errors.New(pemBlockMissingMessage)
	}
	if key, pkcs1Error := x509.ParsePKCS1PrivateKey(block.Bytes); pkcs1Error == nil {
		return key, nil
	}
	parsed, pkcs8Error := x509.ParsePKCS8PrivateKey(block.Bytes)
	if pkcs8Error != nil {
		return nil, pkcs8Error
	}
	key, isRSA := parsed.(*rsa.PrivateKey)
	if !isRSA {
		return nil, errors.New(privateKeyNotRSAMessage)
	}
	return key, nil
}

// SignAppToken issues the short-lived RS256 JWT that authenticates the App itself.
func SignAppToken(credentials AppCredentials, now time.Time) (string, error) {
	if validationError := credentials.Validate(); validationError != nil {
		return "", validationError
	}
	key, keyError := credentials.privateKey()
	if keyError != nil {
		return "", keyError
	}

	signer, signerError := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType(jwtTypeConstant),
	)
	if signerError != nil {
		return "", fmt.Errorf(appSigningTemplate, signerError)
	}

	claims := jwt.Claims{
		Issuer:   strconv.FormatInt(credentials.AppID, 10),
		IssuedAt: jwt.NewNumericDate(now.Add(-appTokenClockSkewConstant)),
		Expiry:   jwt.NewNumericDate(now.Add(appTokenLifetimeConstant)),
	}
	token, serializeError := jwt.Signed(signer).Claims(claims).Serialize()
	if serializeError != nil {
		return "", fmt.Errorf(appSigningTemplate, serializeError)
	}
	return token, nil
}
