package tufngate

import (
	"time"

	"github.com/tufnapp/tufngate/forms"
)

// Command is a user action submitted through a Submitter.
type Command interface {
	Form() forms.Kind
	command()
}

// JoinWaitlist asks to add Email to the waitlist.
type JoinWaitlist struct {
	Email string
}

// SubmitReview posts a product review.
type SubmitReview struct {
	Name    string
	Email   string
	Rating  int
	Comment string
}

// SubmitFeedback posts a feedback message. Name and Email are optional.
type SubmitFeedback struct {
	Name     string
	Email    string
	Category string
	Message  string
}

func (JoinWaitlist) Form() forms.Kind   { return forms.KindWaitlist }
func (SubmitReview) Form() forms.Kind   { return forms.KindReview }
func (SubmitFeedback) Form() forms.Kind { return forms.KindFeedback }

func (JoinWaitlist) command()   {}
func (SubmitReview) command()   {}
func (SubmitFeedback) command() {}

// OutcomeKind classifies how a submission ended.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeCooldown      OutcomeKind = "cooldown"
	OutcomeRateLimited   OutcomeKind = "rate_limited"
	OutcomeInvalid       OutcomeKind = "invalid"
	OutcomeConflict      OutcomeKind = "conflict"
	OutcomeFailed        OutcomeKind = "failed"
	OutcomeAlreadyJoined OutcomeKind = "already_joined"
	OutcomeInFlight      OutcomeKind = "in_flight"
)

// User-facing notices.
const (
	MsgCooldown       = "Please wait a moment before trying again."
	MsgRateLimited    = "Too many requests. Please try again in a few seconds."
	MsgInvalidEmail   = "Please enter a valid email address."
	MsgInvalidFields  = "Please check the highlighted fields."
	MsgConflict       = "This email or device is already on the waitlist."
	MsgConflictOther  = "You have already sent this."
	MsgFailed         = "Something went wrong. Please try again."
	MsgJoined         = "You're on the waitlist!"
	MsgAlreadyJoined  = "You're already on the waitlist."
	MsgReviewThanks   = "Thanks for your review!"
	MsgFeedbackThanks = "Thanks for your feedback!"
	MsgInFlight       = "Your previous submission is still being sent."
)

// Outcome is the result of dispatching a Command. Every outcome carries a
// message fit to show the user; Err is nil only on success.
type Outcome struct {
	Kind       OutcomeKind        `json:"kind"`
	Form       forms.Kind         `json:"form"`
	Message    string             `json:"message"`
	Fields     []forms.FieldError `json:"fields,omitempty"`
	RetryAfter time.Duration      `json:"retry_after,omitempty"`
	Err        error              `json:"-"`
}

// OK reports whether the submission was accepted by the endpoint.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }
