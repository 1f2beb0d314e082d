package classify

import "github.com/vietddude/arcsign/internal/core/domain"

// Source selects which evidence a rule inspects.
type Source int

const (
	SourceBody         Source = iota // Raw body, substring match
	SourceStatusField                // Top-level JSON field, exact sentinel match
	SourceMessageField               // Top-level JSON string field, substring match
)

// Rule names used by the default rule set.
const (
	RuleAlreadyDone    = "already_done_text"
	RuleStatusSuccess  = "status_field_success"
	RuleMessageSuccess = "message_field_success"
	RuleJustSucceeded  = "just_succeeded_text"
)

// Rule is one entry of the ordered matcher list. All comparisons are case-insensitive.
type Rule struct {
	Name    string
	Source  Source
	Fields  []string // JSON keys, for field sources
	Phrases []string // substrings, or sentinels for SourceStatusField
	Outcome domain.Outcome
}

// DefaultRules returns the rule set observed on m.arctime.cn, highest priority first.
// Text evidence precedes structured evidence.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   RuleAlreadyDone,
			Source: SourceBody,
			Phrases: []string{
				"今日已签到",
				"今天已签到",
				"已经签到",
				"already signed",
				"already checked in",
			},
			Outcome: domain.OutcomeAlreadyDone,
		},
		{
			Name:    RuleStatusSuccess,
			Source:  SourceStatusField,
			Fields:  []string{"status"},
			Phrases: []string{"1", "true", "success", "ok"},
			Outcome: domain.OutcomeJustSucceeded,
		},
		{
			Name:    RuleMessageSuccess,
			Source:  SourceMessageField,
			Fields:  []string{"msg", "message", "info"},
			Phrases: []string{"成功", "success"},
			Outcome: domain.OutcomeJustSucceeded,
		},
		{
			Name:   RuleJustSucceeded,
			Source: SourceBody,
			Phrases: []string{
				"操作成功",
				"签到成功",
				"sign in success",
			},
			Outcome: domain.OutcomeJustSucceeded,
		},
	}
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		r.Fields = append([]string(nil), r.Fields...)
		r.Phrases = append([]string(nil), r.Phrases...)
		out[i] = r
	}
	return out
}
