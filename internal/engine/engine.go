// Package engine implements the deception decision pipeline: it consumes
// payload fingerprints, adapter results, and attacker state, picks a
// response strategy from a fixed-priority rule table, and records one
// forensic event for every request on every exit path.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chameleon-systems/chameleon/internal/classifier"
	"github.com/chameleon-systems/chameleon/internal/decoy"
	"github.com/chameleon-systems/chameleon/internal/fingerprint"
	"github.com/chameleon-systems/chameleon/internal/geo"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/metrics"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/internal/script"
	"github.com/chameleon-systems/chameleon/internal/session"
	"github.com/chameleon-systems/chameleon/internal/state"
)

// passwordPreviewMax caps how much of a submitted password is retained.
const passwordPreviewMax = 100

// Config tunes the deception thresholds.
type Config struct {
	// TargetSecret is the one password that "succeeds" into the OTP bait.
	TargetSecret string

	// BanThreshold bans an IP once its failed logins reach this count.
	BanThreshold int64

	// TarpitAfter applies the tarpit once failures exceed this count
	// (and stay below BanThreshold).
	TarpitAfter int64

	// TarpitDelay is the fixed response delay of the tarpit.
	TarpitDelay time.Duration
}

// DefaultConfig returns the observed production thresholds.
func DefaultConfig() Config {
	return Config{
		BanThreshold: 7,
		TarpitAfter:  3,
		TarpitDelay:  5 * time.Second,
	}
}

// LoginRequest is one inbound login attempt.
type LoginRequest struct {
	IP       string
	Username string
	Password string
	Device   models.DeviceFingerprint
}

// Decision is the terminal outcome of one request: what to send back and
// how. TarpitDelay, when non-zero, must elapse before the body is written;
// the event has already been appended by then.
type Decision struct {
	Status      int
	Body        string
	Cookie      *http.Cookie
	TarpitDelay time.Duration
	Event       *models.Event
}

// Engine runs the request pipeline.
type Engine struct {
	cfg        Config
	state      state.Repository
	ledger     *ledger.Service
	geo        geo.Client
	classifier classifier.Client
	decoy      decoy.Store
	script     *script.Script
	logger     *logging.Logger
	rules      []rule
}

// New wires the engine. All collaborators are injected; none are ambient.
func New(
	cfg Config,
	stateRepo state.Repository,
	ledgerSvc *ledger.Service,
	geoClient geo.Client,
	classifierClient classifier.Client,
	decoyStore decoy.Store,
	deceptionScript *script.Script,
	logger *logging.Logger,
) *Engine {
	if cfg.BanThreshold <= 0 {
		cfg.BanThreshold = DefaultConfig().BanThreshold
	}
	if cfg.TarpitAfter <= 0 {
		cfg.TarpitAfter = DefaultConfig().TarpitAfter
	}
	if cfg.TarpitDelay <= 0 {
		cfg.TarpitDelay = DefaultConfig().TarpitDelay
	}
	if deceptionScript == nil {
		deceptionScript = script.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		cfg:        cfg,
		state:      stateRepo,
		ledger:     ledgerSvc,
		geo:        geoClient,
		classifier: classifierClient,
		decoy:      decoyStore,
		script:     deceptionScript,
		logger:     logger,
	}
	e.rules = e.ruleTable()
	return e
}

// Script exposes the deception script so the HTTP layer can fall back to
// scripted fragments when the pipeline itself errors.
func (e *Engine) Script() *script.Script {
	return e.script
}

// HandleLogin runs the fixed-priority pipeline for one login attempt.
// The first matching rule is terminal; every path appends exactly one
// event before the decision is returned.
func (e *Engine) HandleLogin(ctx context.Context, req *LoginRequest) (*Decision, error) {
	metrics.RequestsTotal.WithLabelValues("admin").Inc()

	payload := req.Username + " " + req.Password

	// GeoIntel and the payload fingerprint are independent; the lookup
	// runs concurrently while the fingerprint is computed inline.
	geoCh := make(chan *models.GeoIntel, 1)
	go func() {
		intel, err := e.geo.Lookup(ctx, req.IP)
		if err != nil {
			metrics.AdapterFailures.WithLabelValues("geo").Inc()
			e.logger.WarnContext(ctx, "Geo lookup degraded", logging.IP(req.IP), logging.Err(err))
			intel = geo.FailureIntel(req.IP)
		}
		geoCh <- intel
	}()

	pfp := fingerprint.Compute(payload)
	scanner := fingerprint.DetectScanner(req.Device.UserAgent)
	intel := <-geoCh

	// Contact is folded in before any branch decides anything. A tracker
	// failure degrades to an empty snapshot rather than aborting: an
	// abort here would drop the attempt without a ledger event.
	snap, err := e.state.RecordContact(ctx, req.IP, time.Now())
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("state").Inc()
		e.logger.WarnContext(ctx, "State tracking degraded", logging.IP(req.IP), logging.Err(err))
		snap = &models.ContactSnapshot{}
	}

	device := req.Device
	ev := &models.Event{
		Kind:               models.EventKindLogin,
		SourceIP:           req.IP,
		Scanner:            scanner,
		GeoIntel:           intel,
		DeviceFingerprint:  &device,
		PayloadFingerprint: &pfp,
		Behavioral: &models.Behavioral{
			DeltaMS:      snap.DeltaMS,
			RequestCount: snap.RequestCount,
			FailedLogins: snap.FailedLogins,
		},
	}

	ec := &evalContext{req: req, payload: payload, snap: snap, event: ev}

	for _, r := range e.rules {
		if !r.guard(ctx, ec) {
			continue
		}

		decision := r.handle(ctx, ec)
		decision.Event = ev

		e.appendEvent(ctx, ev)
		if ev.LoginAttempt != nil {
			metrics.OutcomesTotal.WithLabelValues(ev.LoginAttempt.Outcome).Inc()
		}

		e.logger.InfoContext(ctx, "Login attempt handled",
			logging.IP(req.IP),
			logging.EventID(ev.EventID),
			logging.Outcome(ev.LoginAttempt.Outcome),
			"rule", r.name,
		)
		return decision, nil
	}

	// The failure rule matches unconditionally; reaching here is a bug.
	return nil, fmt.Errorf("no rule matched login attempt from %s", req.IP)
}

// appendEvent records the event. Ledger degradation is logged, counted,
// and spooled inside the ledger; the attacker-facing response proceeds.
func (e *Engine) appendEvent(ctx context.Context, ev *models.Event) {
	if err := e.ledger.Append(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "Forensic append degraded",
			logging.EventID(ev.EventID), logging.Err(err))
	}
}

// preview caps retained password material at passwordPreviewMax bytes.
func preview(password string) string {
	if len(password) > passwordPreviewMax {
		return password[:passwordPreviewMax]
	}
	return password
}

// classify memoizes the classifier result for this request, applying the
// fail-open fallback and then the admin-username override. The override
// keeps plain wrong-password guesses against "admin" out of the
// injection and leak traps.
func (ec *evalContext) classify(ctx context.Context, e *Engine) models.Classification {
	if ec.cls != nil {
		return *ec.cls
	}

	cls, err := e.classifier.Classify(ctx, ec.payload)
	if err != nil {
		metrics.AdapterFailures.WithLabelValues("classifier").Inc()
		e.logger.WarnContext(ctx, "Classifier degraded to fallback",
			logging.IP(ec.req.IP), logging.Err(err))
		cls = classifier.Fallback()
		ec.clsFallback = true
	}

	if strings.ToLower(ec.req.Username) == "admin" {
		cls = models.Classification{Label: classifier.LabelNormal, Confidence: 1.0}
	}

	ec.cls = &cls
	return cls
}

// evalContext carries one request through the rule table.
type evalContext struct {
	req         *LoginRequest
	payload     string
	snap        *models.ContactSnapshot
	event       *models.Event
	cls         *models.Classification
	clsFallback bool
}

// HandleOTP processes the fake two-factor verification reachable after the
// correct-credential bait. The code is format-checked only; every call
// appends an event regardless of outcome.
func (e *Engine) HandleOTP(ctx context.Context, ip, code, cookieValue string) (*Decision, error) {
	metrics.RequestsTotal.WithLabelValues("otp-verify").Inc()

	parsed, _ := session.Decode(cookieValue)

	ev := &models.Event{
		Kind:         models.EventKindOTP,
		SourceIP:     ip,
		OTPCode:      code,
		ParsedCookie: parsed,
	}
	e.appendEvent(ctx, ev)

	if otpCodePattern.MatchString(code) {
		return &Decision{Status: http.StatusOK, Body: e.script.UploadPrompt, Event: ev}, nil
	}
	return &Decision{Status: http.StatusOK, Body: e.script.InvalidCode, Event: ev}, nil
}

// HandleUpload acknowledges the upload bait. The content has already been
// discarded by the HTTP layer; only its size is recorded.
func (e *Engine) HandleUpload(ctx context.Context, ip string, size int64) (*Decision, error) {
	metrics.RequestsTotal.WithLabelValues("upload-id").Inc()

	ev := &models.Event{
		Kind:       models.EventKindUpload,
		SourceIP:   ip,
		UploadSize: size,
	}
	e.appendEvent(ctx, ev)

	return &Decision{Status: http.StatusOK, Body: e.script.UploadAck, Event: ev}, nil
}
