// Package jwt issues and checks the bearer tokens identities use against the
// ledger's read API. Tokens are signed with the identity key itself, so the
// issuer claim is the authenticated address.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/escrow-ledger"
)

const (
	Type      = "JWT"
	Algorithm = "ECRECOVER"
)

var (
	ErrMalformed   = errors.New("malformed token")
	ErrUnsupported = errors.New("unsupported token type")
	ErrExpired     = errors.New("token expired")
	ErrIssuer      = errors.New("issuer is not a ledger identity")
)

// Create signs claims with an identity key. An empty issuer is filled with
// the key's address; any other issuer must match it.
func Create(claims Claims, privatekey string) (string, error) {
	addr, err := escrow.PrivKeyToAddr(privatekey, escrow.IdentityPrefix)
	if err != nil {
		return "", err
	}
	if claims.Issuer == "" {
		claims.Issuer = addr
	}
	if claims.Issuer != addr {
		return "", errors.Wrapf(ErrIssuer, "key belongs to %s, not %s", addr, claims.Issuer)
	}

	header, err := json.Marshal(Header{Type: Type, Algorithm: Algorithm, KeyID: addr})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	target := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature, err := escrow.SignBytes([]byte(target), privatekey)
	if err != nil {
		return "", err
	}

	return target + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Validate checks the token against the current time.
func Validate(token string) (*Claims, error) {
	return ValidateAt(token, time.Now())
}

// ValidateAt returns the claims of a token signed by its issuer identity and
// not expired at now.
func ValidateAt(token string, now time.Time) (*Claims, error) {
	split := strings.Split(token, ".")
	if len(split) != 3 {
		return nil, ErrMalformed
	}

	var header Header
	if err := decodeSegment(split[0], &header); err != nil {
		return nil, err
	}
	if header.Type != Type || header.Algorithm != Algorithm {
		return nil, ErrUnsupported
	}

	var claims Claims
	if err := decodeSegment(split[1], &claims); err != nil {
		return nil, err
	}

	if !escrow.IsIdentity(claims.Issuer) {
		return nil, errors.Wrapf(ErrIssuer, "%q", claims.Issuer)
	}
	if header.KeyID != "" && header.KeyID != claims.Issuer {
		return nil, errors.Wrap(ErrIssuer, "key id differs from issuer")
	}

	if claims.ExpirationTime != "" {
		exp, err := strconv.ParseInt(claims.ExpirationTime, 10, 64)
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, "exp is not a unix time")
		}
		if exp < now.Unix() {
			return nil, ErrExpired
		}
	}

	signature, err := base64.RawURLEncoding.DecodeString(split[2])
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, "signature encoding")
	}
	if err := escrow.VerifySignature([]byte(split[0]+"."+split[1]), signature, claims.Issuer); err != nil {
		return nil, err
	}

	return &claims, nil
}

func decodeSegment(segment string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return errors.Wrap(ErrMalformed, "segment encoding")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}
