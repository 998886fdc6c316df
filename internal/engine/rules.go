package engine

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chameleon-systems/chameleon/internal/classifier"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/metrics"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/internal/session"
)

// decoyLeakNeedle is the literal payload substring that triggers the
// decoy-leak trap, matched case-insensitively.
const decoyLeakNeedle = "select * from 'users'"

// injectionHint is the fake table pointer recorded when the injection
// trap fires.
const injectionHint = "users_table"

// otpCodePattern accepts 4-8 digit codes as "valid". Format check only.
var otpCodePattern = regexp.MustCompile(`^\d{4,8}$`)

// rule is one guard+handler pair in the fixed-priority decision list.
// Guards must be side-effect free except for the lazy classifier call;
// the first rule whose guard matches is terminal for the request.
type rule struct {
	name   string
	guard  func(ctx context.Context, ec *evalContext) bool
	handle func(ctx context.Context, ec *evalContext) *Decision
}

// ruleTable returns the evaluation order as a first-class artifact:
// ban, correct credentials, injection hint, decoy leak, generic failure.
func (e *Engine) ruleTable() []rule {
	return []rule{
		{
			name: "ban",
			guard: func(_ context.Context, ec *evalContext) bool {
				return ec.snap.FailedLogins >= e.cfg.BanThreshold
			},
			handle: e.handleBan,
		},
		{
			name: "correct-credentials",
			guard: func(_ context.Context, ec *evalContext) bool {
				return ec.req.Username == "admin" && ec.req.Password == e.cfg.TargetSecret
			},
			handle: e.handleCorrect,
		},
		{
			name: "injection-hint",
			guard: func(ctx context.Context, ec *evalContext) bool {
				return ec.classify(ctx, e).Label == classifier.LabelInjected
			},
			handle: e.handleInjection,
		},
		{
			name: "decoy-leak",
			guard: func(_ context.Context, ec *evalContext) bool {
				return strings.Contains(strings.ToLower(ec.payload), decoyLeakNeedle)
			},
			handle: e.handleDecoyLeak,
		},
		{
			name: "failure",
			guard: func(context.Context, *evalContext) bool {
				return true
			},
			handle: e.handleFailure,
		},
	}
}

func (e *Engine) handleBan(_ context.Context, ec *evalContext) *Decision {
	ec.event.LoginAttempt = &models.LoginAttempt{
		Outcome: models.OutcomeBanned,
	}
	ec.event.Deception = &models.Deception{Banned: true}

	return &Decision{
		Status: http.StatusForbidden,
		Body:   e.script.Blocked,
	}
}

func (e *Engine) handleCorrect(_ context.Context, ec *evalContext) *Decision {
	ec.event.LoginAttempt = &models.LoginAttempt{
		Username:        ec.req.Username,
		PasswordPreview: preview(ec.req.Password),
		MLLabel:         "override",
		MLConfidence:    1.0,
		Outcome:         models.OutcomeCorrect,
	}
	ec.event.Deception = &models.Deception{OTPBait: true}

	return &Decision{
		Status: http.StatusOK,
		Body:   e.script.OTPPrompt,
		Cookie: session.NewCookie(ec.req.Username, time.Now()),
	}
}

func (e *Engine) handleInjection(ctx context.Context, ec *evalContext) *Decision {
	cls := ec.classify(ctx, e)
	ec.event.LoginAttempt = &models.LoginAttempt{
		Username:        ec.req.Username,
		PasswordPreview: preview(ec.req.Password),
		MLLabel:         cls.Label,
		MLConfidence:    cls.Confidence,
		MLFallback:      ec.clsFallback,
		Outcome:         models.OutcomeInjection,
	}
	ec.event.Deception = &models.Deception{Hint: injectionHint}

	return &Decision{
		Status: http.StatusOK,
		Body:   e.script.SchemaHint,
	}
}

func (e *Engine) handleDecoyLeak(ctx context.Context, ec *evalContext) *Decision {
	rows := e.decoy.Dump(ctx)

	cls := ec.classify(ctx, e)
	ec.event.LoginAttempt = &models.LoginAttempt{
		Username:        ec.req.Username,
		PasswordPreview: preview(ec.req.Password),
		MLLabel:         cls.Label,
		MLConfidence:    cls.Confidence,
		MLFallback:      ec.clsFallback,
		Outcome:         models.OutcomeDecoyLeak,
	}
	ec.event.Deception = &models.Deception{
		TableLeak:  true,
		LeakedRows: rows,
	}

	return &Decision{
		Status: http.StatusOK,
		Body:   e.script.RenderDump(rows),
	}
}

func (e *Engine) handleFailure(ctx context.Context, ec *evalContext) *Decision {
	cls := ec.classify(ctx, e)
	ec.event.LoginAttempt = &models.LoginAttempt{
		Username:        ec.req.Username,
		PasswordPreview: preview(ec.req.Password),
		MLLabel:         cls.Label,
		MLConfidence:    cls.Confidence,
		MLFallback:      ec.clsFallback,
		Outcome:         models.OutcomeFailed,
	}

	newFails, err := e.state.RecordFailure(ctx, ec.req.IP)
	if err != nil {
		// The counter could not advance; the attempt is still recorded
		// as failed, it just will not count toward the thresholds.
		e.logger.ErrorContext(ctx, "Failed-login counter not advanced",
			logging.IP(ec.req.IP), logging.Err(err))
	}

	decision := &Decision{
		Status: http.StatusUnauthorized,
		Body:   e.script.InvalidCredentials,
	}

	if newFails > e.cfg.TarpitAfter && newFails < e.cfg.BanThreshold {
		delay := e.cfg.TarpitDelay
		ec.event.Deception = &models.Deception{TarpitDelayMS: delay.Milliseconds()}
		decision.TarpitDelay = delay
		metrics.TarpitsTotal.Inc()
	}

	return decision
}
