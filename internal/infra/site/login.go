package site

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/vietddude/arcsign/internal/classify"
	"github.com/vietddude/arcsign/internal/core/domain"
)

// Login posts the credential to the login URL. The session's cookie jar keeps
// the resulting session cookie for later requests.
func (s *Session) Login(ctx context.Context, cred domain.Credential, c *classify.Classifier) error {
	if cred.Empty() {
		return &AuthenticationError{Reason: "missing username or password"}
	}

	form := url.Values{}
	form.Set("username", cred.Identifier)
	form.Set("password", cred.Secret)
	form.Set("login_type", s.cfg.LoginType)

	header := http.Header{}
	if s.cfg.Referer != "" {
		header.Set("Referer", s.cfg.Referer)
	}

	s.log.Info("Logging in", "user", cred.Identifier)
	sample, err := s.Issue(ctx, Request{
		Target: "login",
		Method: http.MethodPost,
		URL:    s.cfg.LoginURL,
		Header: header,
		Form:   form,
	})
	if err != nil {
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			return err
		}
		return &AuthenticationError{Reason: "login request", Err: err}
	}

	verdict := c.Classify(sample)
	if !verdict.Outcome.Confirmed() {
		return &AuthenticationError{Reason: loginReason(sample, verdict)}
	}

	s.log.Info("Login succeeded", "rule", verdict.Rule)
	return nil
}

func loginReason(sample domain.ResponseSample, verdict classify.Verdict) string {
	if verdict.Outcome == domain.OutcomeUnknown {
		return "unexpected login response: " + Truncate(sample.Body, 100)
	}
	if msg := serverMessage(sample.Body); msg != "" {
		return msg
	}
	return verdict.Reason
}

// serverMessage extracts the "msg" field of a JSON body, if any.
func serverMessage(body string) string {
	var resp struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return ""
	}
	return resp.Msg
}
