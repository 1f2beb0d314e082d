// Package signin performs one daily sign-in run.
//
// A run logs in, checks whether today's sign-in is already recorded, tries the
// candidate endpoints in priority order until one is confirmed, re-checks the
// status page after a settle delay, and reports the result. Errors never escape
// Run; they are folded into the Report.
package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/arcsign/internal/classify"
	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/core/domain"
	"github.com/vietddude/arcsign/internal/infra/notify"
	"github.com/vietddude/arcsign/internal/infra/site"
	"github.com/vietddude/arcsign/internal/metrics"
)

// Site is the HTTP collaborator used by a run.
type Site interface {
	Login(ctx context.Context, cred domain.Credential, c *classify.Classifier) error
	Issue(ctx context.Context, r site.Request) (domain.ResponseSample, error)
}

// Report is the result of one run.
type Report struct {
	RunID     string
	User      string
	Outcome   domain.Outcome
	Endpoint  string // endpoint that confirmed the sign-in, or "status" for the status page
	Attempts  int    // endpoint requests issued, retries included
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Subject is the notification subject line.
func (r Report) Subject() string {
	return fmt.Sprintf("[arcsign] %s %s", r.User, r.Outcome)
}

// Summary is the plain-text notification body.
func (r Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run:      %s\n", r.RunID)
	fmt.Fprintf(&sb, "user:     %s\n", r.User)
	fmt.Fprintf(&sb, "outcome:  %s\n", r.Outcome)
	fmt.Fprintf(&sb, "started:  %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "duration: %s\n", r.Duration.Round(time.Millisecond))
	if r.Endpoint != "" {
		fmt.Fprintf(&sb, "via:      %s\n", r.Endpoint)
	}
	fmt.Fprintf(&sb, "attempts: %d\n", r.Attempts)
	if r.Err != nil {
		fmt.Fprintf(&sb, "error:    %v\n", r.Err)
	}
	return sb.String()
}

// Runner executes sign-in runs.
type Runner struct {
	cfg        *config.AppConfig
	site       Site
	classifier *classify.Classifier
	notifier   notify.Notifier
	log        *slog.Logger
}

// NewRunner creates a Runner. A nil notifier disables notification.
func NewRunner(cfg *config.AppConfig, s Site, n notify.Notifier, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:        cfg,
		site:       s,
		classifier: NewClassifier(cfg.Markers),
		notifier:   n,
		log:        log,
	}
}

// NewClassifier builds the default classifier extended with configured phrases.
func NewClassifier(m config.MarkersConfig) *classify.Classifier {
	return classify.Default().
		WithExtraPhrases(classify.RuleAlreadyDone, m.AlreadyDone...).
		WithExtraPhrases(classify.RuleJustSucceeded, m.JustSucceeded...).
		WithExtraPhrases(classify.RuleMessageSuccess, m.MessageSuccess...)
}

// Run performs one sign-in run.
func (r *Runner) Run(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.NewString(),
		User:      r.cfg.Credential.Identifier,
		StartedAt: time.Now(),
	}
	log := r.log.With("run_id", report.RunID)
	log.Info("Sign-in run started", "user", report.User, "endpoints", len(r.cfg.Endpoints))

	report.Outcome, report.Err = r.run(ctx, log, &report)
	report.Duration = time.Since(report.StartedAt)

	if report.Err != nil {
		report.Outcome = domain.OutcomeFailed
		log.Error("Sign-in run failed", "error", report.Err)
	} else if report.Outcome.Confirmed() {
		log.Info("Sign-in confirmed", "outcome", report.Outcome, "via", report.Endpoint)
	} else {
		log.Warn("Sign-in could not be confirmed", "outcome", report.Outcome)
	}

	metrics.SetRunOutcome(report.Outcome.String(), allOutcomes())
	r.notify(ctx, log, report)
	return report
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, report *Report) (domain.Outcome, error) {
	if err := r.site.Login(ctx, r.cfg.Credential, r.classifier); err != nil {
		return domain.OutcomeFailed, fmt.Errorf("login: %w", err)
	}

	outcome, err := r.checkStatus(ctx, log)
	if err != nil {
		if ClassifyError(err) == ActionFatal {
			return domain.OutcomeFailed, err
		}
		log.Warn("Status check failed", "error", err)
	}
	if outcome.Confirmed() {
		report.Endpoint = "status"
		return domain.OutcomeAlreadyDone, nil
	}

	last := domain.OutcomeUnknown
	for _, ep := range r.cfg.Endpoints {
		verdict, attempts, err := r.tryEndpoint(ctx, log, ep)
		report.Attempts += attempts
		if err != nil {
			metrics.EndpointOutcomes.WithLabelValues(ep.Name, "error").Inc()
			if ClassifyError(err) == ActionFatal {
				return domain.OutcomeFailed, err
			}
			log.Warn("Endpoint failed", "endpoint", ep.Name, "error", err)
			continue
		}

		metrics.EndpointOutcomes.WithLabelValues(ep.Name, verdict.Outcome.String()).Inc()
		log.Info("Endpoint classified",
			"endpoint", ep.Name,
			"outcome", verdict.Outcome,
			"rule", verdict.Rule,
			"reason", verdict.Reason,
		)
		if verdict.Outcome.Confirmed() {
			report.Endpoint = ep.Name
			return verdict.Outcome, nil
		}
		if verdict.Outcome == domain.OutcomeFailed {
			last = domain.OutcomeFailed
		}
	}

	// The site records the sign-in asynchronously; give it time before the final look.
	log.Info("No endpoint confirmed, re-checking status page", "delay", r.cfg.SettleDelay)
	if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
		return domain.OutcomeFailed, err
	}

	outcome, err = r.checkStatus(ctx, log)
	if err != nil {
		if ClassifyError(err) == ActionFatal {
			return domain.OutcomeFailed, err
		}
		log.Warn("Status re-check failed", "error", err)
	}
	if outcome.Confirmed() {
		report.Endpoint = "status"
		return outcome, nil
	}
	return last, nil
}

func (r *Runner) tryEndpoint(ctx context.Context, log *slog.Logger, ep domain.Endpoint) (classify.Verdict, int, error) {
	log.Info("Trying sign-in endpoint", "endpoint", ep.Name, "method", ep.Method, "url", ep.URL)

	header := http.Header{}
	header.Set("Referer", r.cfg.Site.StatusURL)

	sample, attempts, err := issueWithRetry(ctx, func(ctx context.Context) (domain.ResponseSample, error) {
		return r.site.Issue(ctx, site.Request{
			Target:  ep.Name,
			Method:  ep.Method,
			URL:     ep.URL,
			Header:  header,
			Timeout: ep.Timeout,
		})
	}, r.throttled, r.cfg.Retry)
	if err != nil {
		return classify.Verdict{}, attempts, err
	}
	return r.classifier.Classify(sample), attempts, nil
}

// throttled treats a sample as a rate-limit answer only when the classifier
// cannot confirm it; "已签到，请勿操作频繁" is still a confirmation.
func (r *Runner) throttled(sample domain.ResponseSample) bool {
	if r.classifier.Classify(sample).Outcome.Confirmed() {
		return false
	}
	return site.IsThrottled(sample)
}

// checkStatus reads the user-center page. The classifier runs first; the
// sign-in badge is consulted only when no rule confirmed anything.
func (r *Runner) checkStatus(ctx context.Context, log *slog.Logger) (domain.Outcome, error) {
	if r.cfg.Site.StatusURL == "" {
		return domain.OutcomeUnknown, nil
	}

	sample, err := r.site.Issue(ctx, site.Request{
		Target: "status",
		Method: http.MethodGet,
		URL:    r.cfg.Site.StatusURL,
	})
	if err != nil {
		return domain.OutcomeUnknown, err
	}

	verdict := r.classifier.Classify(sample)
	if verdict.Outcome.Confirmed() {
		log.Info("Status page confirms sign-in", "rule", verdict.Rule, "reason", verdict.Reason)
		return verdict.Outcome, nil
	}
	if outcome, ok := classify.PageStatus(sample.Body); ok {
		log.Info("Status badge confirms sign-in", "outcome", outcome)
		return outcome, nil
	}

	log.Debug("Status page does not confirm sign-in", "status", sample.StatusCode)
	return domain.OutcomeUnknown, nil
}

func (r *Runner) notify(ctx context.Context, log *slog.Logger, report Report) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, report.Subject(), report.Summary()); err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			return
		}
		log.Warn("Failed to send notification", "error", err)
	}
}

func allOutcomes() []string {
	return []string{
		domain.OutcomeUnknown.String(),
		domain.OutcomeAlreadyDone.String(),
		domain.OutcomeJustSucceeded.String(),
		domain.OutcomeFailed.String(),
	}
}
