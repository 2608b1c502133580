package escrow

import (
	"fmt"
	"net/url"
	"strings"
)

const SlotURIScheme = "escrow"

func ParseSlotURI(escaped string) (string, error) {
	uriString, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("invalid uri encoding")
	}
	uri, err := url.Parse(uriString)
	if err != nil {
		return "", fmt.Errorf("invalid uri")
	}

	if uri.Scheme != SlotURIScheme {
		return "", fmt.Errorf("unsupported uri scheme")
	}

	slot := uri.Host
	if !IsSlot(slot) {
		return "", fmt.Errorf("invalid slot: %s", slot)
	}

	return slot, nil
}

func ComposeSlotURI(slot string) string {
	u := &url.URL{
		Scheme: SlotURIScheme,
		Host:   slot,
	}
	return u.String()
}

// NormalizeSlot accepts either a bare slot or a slot uri.
func NormalizeSlot(s string) (string, error) {
	if strings.HasPrefix(s, SlotURIScheme+"://") {
		return ParseSlotURI(s)
	}
	if !IsSlot(s) {
		return "", fmt.Errorf("invalid slot: %s", s)
	}
	return s, nil
}

func hasChar(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}

func IsIdentity(keyID string) bool {
	return len(keyID) == 42 && keyID[:4] == IdentityPrefix+"1" && !hasChar(keyID, '.')
}

func IsSlot(keyID string) bool {
	return len(keyID) == 42 && keyID[:4] == SlotPrefix+"1" && !hasChar(keyID, '.')
}
