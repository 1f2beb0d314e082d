// Package classify decides what a sign-in response means.
//
// The upstream service answers with HTML, JSON or malformed JSON, and its JSON
// fields sometimes contradict each other (a failing status next to a success
// message). Classifier walks an ordered rule list and returns the outcome of the
// first rule that fires. When nothing fires, a body that decoded as a JSON object
// is Failed and anything else is Unknown.
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vietddude/arcsign/internal/core/domain"
)

// Verdict is the classification of one response.
type Verdict struct {
	Outcome domain.Outcome
	Rule    string // name of the rule that fired, empty when none did
	Reason  string
}

// Classifier maps responses to outcomes. It is safe for concurrent use once built.
type Classifier struct {
	rules []Rule
}

// New creates a classifier from rules, evaluated in the given order.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: cloneRules(rules)}
}

// Default creates a classifier with DefaultRules.
func Default() *Classifier {
	return New(DefaultRules()...)
}

// WithExtraPhrases returns a copy of c with phrases appended to the named rule.
// Unknown rule names and empty phrases are ignored.
func (c *Classifier) WithExtraPhrases(rule string, phrases ...string) *Classifier {
	out := New(c.rules...)
	for i := range out.rules {
		if out.rules[i].Name != rule {
			continue
		}
		for _, p := range phrases {
			if p = strings.TrimSpace(p); p != "" {
				out.rules[i].Phrases = append(out.rules[i].Phrases, p)
			}
		}
	}
	return out
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []Rule {
	return cloneRules(c.rules)
}

// Classify never fails; the worst case is OutcomeUnknown.
func (c *Classifier) Classify(sample domain.ResponseSample) Verdict {
	lowerBody := strings.ToLower(sample.Body)
	fields, decoded := decodeObject(sample.Body)

	for _, r := range c.rules {
		var hit string
		var ok bool
		switch r.Source {
		case SourceBody:
			hit, ok = containsAny(lowerBody, r.Phrases)
		case SourceStatusField:
			if decoded {
				hit, ok = matchStatus(fields, r.Fields, r.Phrases)
			}
		case SourceMessageField:
			if decoded {
				hit, ok = matchMessage(fields, r.Fields, r.Phrases)
			}
		}
		if ok {
			return Verdict{Outcome: r.Outcome, Rule: r.Name, Reason: hit}
		}
	}

	if !decoded {
		return Verdict{Outcome: domain.OutcomeUnknown, Reason: "no marker found in non-JSON body"}
	}
	return Verdict{Outcome: domain.OutcomeFailed, Reason: "JSON body carries no success evidence"}
}

// decodeObject reports whether body is exactly one JSON object. Arrays, scalars,
// malformed input and trailing data all count as not decoded.
func decodeObject(body string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	// Trailing data (PHP warnings, a second object) makes the body malformed.
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return fields, true
}

func containsAny(lowerText string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if p != "" && strings.Contains(lowerText, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

func matchStatus(fields map[string]any, keys, sentinels []string) (string, bool) {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		got := scalarString(v)
		for _, s := range sentinels {
			if got != "" && got == strings.ToLower(s) {
				return fmt.Sprintf("%s=%s", key, got), true
			}
		}
	}
	return "", false
}

func matchMessage(fields map[string]any, keys, phrases []string) (string, bool) {
	for _, key := range keys {
		msg, ok := fields[key].(string)
		if !ok {
			continue
		}
		if p, ok := containsAny(strings.ToLower(msg), phrases); ok {
			return fmt.Sprintf("%s contains %q", key, p), true
		}
	}
	return "", false
}

// scalarString renders a decoded JSON scalar in lower case. Objects, arrays and
// null render as empty.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
