package models

import "time"

// Event kinds. A login attempt produces a full event; the OTP and upload
// bait flows produce reduced events with only the fields they capture.
const (
	EventKindLogin  = "login"
	EventKindOTP    = "otp_verify"
	EventKindUpload = "upload"
)

// Login outcomes.
const (
	OutcomeBanned    = "banned"
	OutcomeCorrect   = "correct"
	OutcomeInjection = "ml_flagged_injection"
	OutcomeDecoyLeak = "decoy_leak"
	OutcomeFailed    = "failed"
)

// Event is one forensic record per attacker request. Immutable once
// appended to the ledger: ContentHash is computed exactly once, over the
// canonical serialization of every other field, and never recomputed.
type Event struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	SourceIP  string    `json:"ip"`

	// Scanner is the tool classification derived from the declared
	// User-Agent, empty when no known scanner matched.
	Scanner string `json:"scanner,omitempty"`

	GeoIntel           *GeoIntel           `json:"geo_intel,omitempty"`
	DeviceFingerprint  *DeviceFingerprint  `json:"device_fp,omitempty"`
	PayloadFingerprint *PayloadFingerprint `json:"payload_fp,omitempty"`
	Behavioral         *Behavioral         `json:"behavioral,omitempty"`
	LoginAttempt       *LoginAttempt       `json:"login_attempt,omitempty"`
	Deception          *Deception          `json:"deception,omitempty"`

	// OTP bait flow fields.
	OTPCode      string         `json:"otp_code,omitempty"`
	ParsedCookie map[string]any `json:"parsed_cookie,omitempty"`

	// Upload bait flow fields. Content is discarded; only the size survives.
	UploadSize int64 `json:"upload_size,omitempty"`

	// Ledger bookkeeping. Seq is assigned by the repository on insert.
	Seq         int64  `json:"seq,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// GeoIntel is the GeoIntel adapter result. A failed or timed-out lookup is
// recorded as Error; callers must treat that as unknown, never as benign.
type GeoIntel struct {
	IP      string `json:"ip"`
	ASN     string `json:"asn,omitempty"`
	Org     string `json:"org,omitempty"`
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	VPNLike bool   `json:"is_vpn,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DeviceFingerprint is attacker-declared client metadata, stored verbatim
// and never trusted.
type DeviceFingerprint struct {
	UserAgent  string `json:"user_agent"`
	AcceptLang string `json:"accept_lang"`
	Screen     string `json:"screen,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// PayloadFingerprint holds the lexical features of the username+password
// payload. Produced by the fingerprint package; pure and deterministic.
type PayloadFingerprint struct {
	Length       int          `json:"length"`
	Entropy      float64      `json:"entropy"`
	TokenCount   int          `json:"token_count"`
	Tokens       []string     `json:"tokens"`
	SpecialChars int          `json:"special_chars"`
	Keywords     KeywordFlags `json:"keywords"`
}

// KeywordFlags marks case-insensitive presence of injection keywords.
type KeywordFlags struct {
	Union  bool `json:"union"`
	Select bool `json:"select"`
	Drop   bool `json:"drop"`
	Script bool `json:"script"`
}

// Behavioral is the attacker-state snapshot folded into an event: the
// inter-request delta (nil on first contact), the request count including
// this contact, and the failed-login count before this request.
type Behavioral struct {
	DeltaMS      *int64 `json:"delta_ms"`
	RequestCount int64  `json:"request_count"`
	FailedLogins int64  `json:"failed_logins"`
}

// LoginAttempt records the credentials and classification of one attempt.
// PasswordPreview is capped; the full password is never stored.
type LoginAttempt struct {
	Username        string  `json:"username"`
	PasswordPreview string  `json:"password_preview,omitempty"`
	MLLabel         string  `json:"ml_label,omitempty"`
	MLConfidence    float64 `json:"ml_confidence,omitempty"`
	MLFallback      bool    `json:"ml_fallback,omitempty"`
	Outcome         string  `json:"outcome"`
}

// Deception records which trap fired for this request, if any.
type Deception struct {
	Banned        bool             `json:"banned,omitempty"`
	OTPBait       bool             `json:"otp_bait,omitempty"`
	Hint          string           `json:"hint,omitempty"`
	TableLeak     bool             `json:"table_leak,omitempty"`
	LeakedRows    []map[string]any `json:"leaked_rows,omitempty"`
	TarpitDelayMS int64            `json:"tarpit_delay_ms,omitempty"`
}
