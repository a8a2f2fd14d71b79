// Package identity verifies VK mini-app launch parameters and extracts the
// external user id a player is keyed by.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kasuganosora/vkrpg/config"
)

var (
	ErrMissingParams    = errors.New("identity: launch params missing")
	ErrInvalidSignature = errors.New("identity: invalid signature")
	ErrMissingUserID    = errors.New("identity: vk_user_id missing")
)

// Verifier checks launch params according to its configured mode.
type Verifier struct {
	mode       string
	secret     []byte
	fallbackID int64
}

// NewVerifier builds a Verifier from explicit configuration.
func NewVerifier(cfg config.IdentityConfig) (*Verifier, error) {
	switch cfg.Mode {
	case config.IdentityModeStrict:
		if cfg.AppSecret == "" {
			return nil, fmt.Errorf("identity: app secret required in %s mode", cfg.Mode)
		}
	case config.IdentityModeBypass:
	default:
		return nil, fmt.Errorf("identity: unknown mode %q", cfg.Mode)
	}
	return &Verifier{
		mode:       cfg.Mode,
		secret:     []byte(cfg.AppSecret),
		fallbackID: cfg.FallbackIdentityID,
	}, nil
}

// Bypass reports whether signatures are skipped.
func (v *Verifier) Bypass() bool { return v.mode == config.IdentityModeBypass }

// Verify returns the external identity id carried by raw, the launch query
// string with or without a leading '?'.
//
// In bypass mode the signature is ignored and a missing header or user id
// resolves to the fallback identity.
func (v *Verifier) Verify(raw string) (int64, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if v.Bypass() {
		if raw == "" {
			return v.fallbackID, nil
		}
		params, err := url.ParseQuery(raw)
		if err != nil {
			return v.fallbackID, nil
		}
		id, err := userID(params)
		if err != nil {
			return v.fallbackID, nil
		}
		return id, nil
	}

	if raw == "" {
		return 0, ErrMissingParams
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	got := params.Get("sign")
	if got == "" {
		return 0, ErrInvalidSignature
	}
	want := Sign(v.secret, params)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return 0, ErrInvalidSignature
	}
	return userID(params)
}

// Sign computes the launch-param signature: HMAC-SHA256 over the vk_*
// params sorted by key and URL-encoded, base64url without padding.
func Sign(secret []byte, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "vk_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	signed := make(url.Values, len(keys))
	for _, k := range keys {
		signed.Set(k, params.Get(k))
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signed.Encode()))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func userID(params url.Values) (int64, error) {
	s := params.Get("vk_user_id")
	if s == "" {
		return 0, ErrMissingUserID
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingUserID, s)
	}
	return id, nil
}
