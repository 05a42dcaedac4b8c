package tufngate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/identity"
	"github.com/tufnapp/tufngate/localstate"
)

// Submitter runs the client side of every form: the global cooldown, the
// per-identity rate limit, validation, exactly one remote write, and the
// local bookkeeping that follows. It never retries on its own.
type Submitter struct {
	gate   *Gate
	local  localstate.Store
	remote backend.Store
	logger *zap.Logger
	busy   atomic.Bool

	ephemMu sync.Mutex
	ephemID string
}

// Status is what a client knows without asking the endpoint.
type Status struct {
	Identity string `json:"identity"`
	Joined   bool   `json:"joined"`
}

// NewSubmitter wires a gate to the client's local state and the endpoint.
func NewSubmitter(gate *Gate, local localstate.Store, remote backend.Store) (*Submitter, error) {
	if gate == nil || local == nil || remote == nil {
		return nil, fmt.Errorf("%w: submitter needs a gate, local state and backend", ErrInvalidConfig)
	}
	return &Submitter{
		gate:   gate,
		local:  local,
		remote: remote,
		logger: gate.Logger().Named("submitter"),
	}, nil
}

// Dispatch runs cmd through the flow and reports how it ended. While one
// Dispatch is running, others return OutcomeInFlight immediately.
func (s *Submitter) Dispatch(ctx context.Context, cmd Command) Outcome {
	if !s.busy.CompareAndSwap(false, true) {
		return s.finish(cmd, Outcome{Kind: OutcomeInFlight, Message: MsgInFlight, Err: ErrInFlight})
	}
	defer s.busy.Store(false)

	var out Outcome
	switch c := cmd.(type) {
	case JoinWaitlist:
		out = s.joinWaitlist(ctx, c)
	case SubmitReview:
		out = s.submitReview(ctx, c)
	case SubmitFeedback:
		out = s.submitFeedback(ctx, c)
	default:
		out = Outcome{Kind: OutcomeFailed, Message: MsgFailed, Err: ErrRemote.WithMessagef("unsupported command %T", cmd)}
	}
	return s.finish(cmd, out)
}

func (s *Submitter) finish(cmd Command, out Outcome) Outcome {
	out.Form = cmd.Form()
	s.gate.Recorder().RecordSubmission(string(out.Form), string(out.Kind))

	fields := []zap.Field{zap.String("form", string(out.Form)), zap.String("reason", string(out.Kind))}
	switch out.Kind {
	case OutcomeSuccess:
		s.logger.Info("submission accepted", fields...)
	case OutcomeFailed:
		s.logger.Warn("submission failed", append(fields, zap.Error(out.Err))...)
	default:
		s.logger.Info("submission rejected", fields...)
	}
	return out
}

// admit runs the two gate checks shared by every form. It returns nil when
// the submission may proceed.
func (s *Submitter) admit(ctx context.Context, kind forms.Kind, id string) *Outcome {
	now := s.gate.Now()
	if !s.gate.CheckGlobalCooldown(now) {
		return &Outcome{Kind: OutcomeCooldown, Message: MsgCooldown, RetryAfter: s.gate.cooldown.Spacing(), Err: ErrCooldown}
	}

	d, err := s.gate.AllowForm(ctx, kind, id, now)
	if err != nil {
		// The endpoint enforces its own limits; a broken local store must
		// not lock the user out.
		s.logger.Warn("rate limit check failed, allowing", zap.String("form", string(kind)), zap.Error(err))
		return nil
	}
	if !d.Allowed {
		return &Outcome{Kind: OutcomeRateLimited, Message: MsgRateLimited, RetryAfter: d.RetryAfter, Err: ErrRateLimited}
	}
	return nil
}

// identity returns the persisted identity. If local storage is broken a
// process-lifetime token is used instead.
func (s *Submitter) identity() string {
	id, err := identity.GetOrCreate(s.local)
	if err == nil {
		return id
	}
	s.ephemMu.Lock()
	defer s.ephemMu.Unlock()
	if s.ephemID != "" {
		return s.ephemID
	}
	id, genErr := identity.New()
	if genErr != nil {
		s.logger.Error("identity unavailable", zap.Error(errors.Join(err, genErr)))
		return "anonymous"
	}
	s.logger.Warn("identity not persisted, using ephemeral token", zap.Error(err))
	s.ephemID = id
	return id
}

func invalid(msg string, errs []forms.FieldError) Outcome {
	return Outcome{
		Kind:    OutcomeInvalid,
		Message: msg,
		Fields:  errs,
		Err:     ErrValidation.WithMessage(errs[0].Error()),
	}
}

func remoteFailure(err error, conflictMsg string) Outcome {
	if errors.Is(err, backend.ErrConflict) {
		return Outcome{Kind: OutcomeConflict, Message: conflictMsg, Err: ErrConflict.Wrap(err)}
	}
	return Outcome{Kind: OutcomeFailed, Message: MsgFailed, Err: ErrRemote.Wrap(err)}
}

func (s *Submitter) joinWaitlist(ctx context.Context, c JoinWaitlist) Outcome {
	joined, err := localstate.Joined(s.local)
	if err != nil {
		s.logger.Warn("read joined flag", zap.Error(err))
	}
	if joined {
		return Outcome{Kind: OutcomeAlreadyJoined, Message: MsgAlreadyJoined, Err: ErrAlreadyJoined}
	}

	id := s.identity()
	if out := s.admit(ctx, forms.KindWaitlist, id); out != nil {
		return *out
	}

	policy, err := s.gate.Config().Policy(forms.KindWaitlist)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: MsgFailed, Err: ErrRemote.Wrap(err)}
	}
	if errs := forms.ValidateWaitlist(policy.Policy, c.Email); len(errs) > 0 {
		return invalid(MsgInvalidEmail, errs)
	}

	row := backend.Signup{
		Fingerprint: id,
		Email:       forms.Truncate(forms.NormalizeEmail(c.Email), forms.MaxEmailLen),
		CreatedAt:   s.gate.Now().UTC(),
	}
	if err := s.remote.InsertSignup(ctx, row); err != nil {
		return remoteFailure(err, MsgConflict)
	}

	if err := localstate.MarkJoined(s.local); err != nil {
		// The row exists remotely; a later attempt will surface as a conflict.
		s.logger.Warn("persist joined flag", zap.Error(err))
	}
	return Outcome{Kind: OutcomeSuccess, Message: MsgJoined}
}

func (s *Submitter) submitReview(ctx context.Context, c SubmitReview) Outcome {
	id := s.identity()
	if out := s.admit(ctx, forms.KindReview, id); out != nil {
		return *out
	}

	policy, err := s.gate.Config().Policy(forms.KindReview)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: MsgFailed, Err: ErrRemote.Wrap(err)}
	}
	in := forms.Review{Name: c.Name, Email: c.Email, Rating: c.Rating, Comment: c.Comment}
	if errs := forms.ValidateReview(policy.Policy, in); len(errs) > 0 {
		return invalid(MsgInvalidFields, errs)
	}

	row := backend.Review{
		Fingerprint: id,
		Name:        forms.Truncate(c.Name, policy.Fields[forms.FieldName].Max),
		Email:       forms.Truncate(forms.NormalizeEmail(c.Email), forms.MaxEmailLen),
		Rating:      c.Rating,
		Comment:     forms.Truncate(c.Comment, policy.Fields[forms.FieldComment].Max),
		CreatedAt:   s.gate.Now().UTC(),
	}
	if err := s.remote.InsertReview(ctx, row); err != nil {
		return remoteFailure(err, MsgConflictOther)
	}
	return Outcome{Kind: OutcomeSuccess, Message: MsgReviewThanks}
}

func (s *Submitter) submitFeedback(ctx context.Context, c SubmitFeedback) Outcome {
	id := s.identity()
	if out := s.admit(ctx, forms.KindFeedback, id); out != nil {
		return *out
	}

	policy, err := s.gate.Config().Policy(forms.KindFeedback)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: MsgFailed, Err: ErrRemote.Wrap(err)}
	}
	in := forms.Feedback{Name: c.Name, Email: c.Email, Category: c.Category, Message: c.Message}
	if errs := forms.ValidateFeedback(policy.Policy, in); len(errs) > 0 {
		return invalid(MsgInvalidFields, errs)
	}

	row := backend.Feedback{
		Fingerprint: id,
		Name:        forms.Truncate(c.Name, policy.Fields[forms.FieldName].Max),
		Email:       forms.Truncate(forms.NormalizeEmail(c.Email), forms.MaxEmailLen),
		Category:    forms.Clean(c.Category),
		Message:     forms.Truncate(c.Message, policy.Fields[forms.FieldMessage].Max),
		CreatedAt:   s.gate.Now().UTC(),
	}
	if err := s.remote.InsertFeedback(ctx, row); err != nil {
		return remoteFailure(err, MsgConflictOther)
	}
	return Outcome{Kind: OutcomeSuccess, Message: MsgFeedbackThanks}
}

// Status reports the joined flag and identity from local state only.
func (s *Submitter) Status() (Status, error) {
	joined, err := localstate.Joined(s.local)
	if err != nil {
		return Status{}, err
	}
	return Status{Identity: s.identity(), Joined: joined}, nil
}

// Count returns the waitlist size for display. Any failure reads as 0.
func (s *Submitter) Count(ctx context.Context) int64 {
	n, err := s.remote.CountSignups(ctx)
	if err != nil {
		s.logger.Debug("waitlist count unavailable", zap.Error(err))
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
