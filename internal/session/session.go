// Package session implements the bait session cookie handed out after a
// "correct" login. The cookie is unsigned base64 JSON on purpose: it is
// trap material for the attacker to find and tamper with, not a security
// boundary. Do not sign it.
package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// CookieName is the bait cookie name.
const CookieName = "session"

// TTL bounds the bait session lifetime.
const TTL = 30 * time.Minute

// otpNotVerified is the fixed OTP flag planted in every new session.
const otpNotVerified = "Not Verified"

// BaitSession is the structure the attacker is meant to decode.
type BaitSession struct {
	Username  string `json:"username"`
	OTPStatus string `json:"otp_status"`
	Created   string `json:"created"`
}

// NewCookie builds the bait cookie for username. Deliberately not
// HttpOnly so client-side inspection finds it.
func NewCookie(username string, now time.Time) *http.Cookie {
	s := BaitSession{
		Username:  username,
		OTPStatus: otpNotVerified,
		Created:   now.UTC().Format(time.RFC3339),
	}

	raw, _ := json.Marshal(s)

	return &http.Cookie{
		Name:     CookieName,
		Value:    base64.StdEncoding.EncodeToString(raw),
		MaxAge:   int(TTL.Seconds()),
		Path:     "/",
		HttpOnly: false,
	}
}

// Decode parses a presented cookie value back into a generic map for
// verbatim forensic storage. Attacker-tampered values are expected;
// anything undecodable yields ok=false and an empty map.
func Decode(value string) (map[string]any, bool) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return map[string]any{}, false
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]any{}, false
	}
	return parsed, true
}
