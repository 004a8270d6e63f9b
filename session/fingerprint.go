package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrFingerprintInvalid is returned when a stored fingerprint cannot be decoded.
var ErrFingerprintInvalid = errors.New("invalid device fingerprint")

// Device carries the best-effort attributes a client runtime can report about
// itself.
type Device struct {
	Screen              string `json:"screen"`
	Timezone            string `json:"timezone"`
	Language            string `json:"language"`
	Languages           string `json:"languages,omitempty"`
	Platform            string `json:"platform"`
	HardwareConcurrency int    `json:"hardwareConcurrency,omitempty"`
	MaxTouchPoints      int    `json:"maxTouchPoints,omitempty"`
	UserAgent           string `json:"userAgent,omitempty"`
}

const maxUserAgentLen = 100

// Fingerprint encodes d as base64 JSON. The user agent is truncated to 100
// bytes.
func Fingerprint(d Device) string {
	if len(d.UserAgent) > maxUserAgentLen {
		d.UserAgent = d.UserAgent[:maxUserAgentLen]
	}
	raw, err := json.Marshal(d)
	if err != nil {
		raw = []byte(`{"error":"fingerprint_failed"}`)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// ParseFingerprint decodes a value produced by [Fingerprint].
func ParseFingerprint(fingerprint string) (Device, error) {
	var d Device
	raw, err := base64.StdEncoding.DecodeString(fingerprint)
	if err != nil {
		return d, ErrFingerprintInvalid
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, ErrFingerprintInvalid
	}
	return d, nil
}

// VerifyFingerprint reports whether current matches the stored fingerprint on
// the attributes that do not drift between page loads: screen, timezone and
// platform. A malformed stored value never matches.
func VerifyFingerprint(stored string, current Device) bool {
	prev, err := ParseFingerprint(stored)
	if err != nil {
		return false
	}
	return prev.Screen == current.Screen &&
		prev.Timezone == current.Timezone &&
		prev.Platform == current.Platform
}
