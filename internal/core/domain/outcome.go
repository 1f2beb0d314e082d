package domain

// Outcome is the result of classifying a sign-in response.
type Outcome int

const (
	OutcomeUnknown       Outcome = iota // No rule fired
	OutcomeAlreadyDone                  // Sign-in was performed earlier today
	OutcomeJustSucceeded                // Sign-in was performed by this request
	OutcomeFailed                       // Response was understood and is not a success
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomeJustSucceeded:
		return "just_succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Confirmed reports whether today's sign-in is known to be done.
func (o Outcome) Confirmed() bool {
	return o == OutcomeAlreadyDone || o == OutcomeJustSucceeded
}

// ExitCode maps the outcome to the process exit status: 0 when confirmed, 1 otherwise.
func (o Outcome) ExitCode() int {
	if o.Confirmed() {
		return 0
	}
	return 1
}
