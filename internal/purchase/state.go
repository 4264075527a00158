// Package purchase holds the buy-credits flow as an explicit state machine.
// Reduce is pure; Flow drives the side effects and dispatches the results.
package purchase

import (
	"errors"

	"race_arcade/internal/domain"
)

type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseSelecting       Phase = "selecting"
	PhaseSubmitting      Phase = "submitting"
	PhaseConfirming      Phase = "confirming"
	PhaseVerifying       Phase = "verifying"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
	PhaseAwaitingRecheck Phase = "awaiting_recheck"
)

// State is everything the purchase UI renders. Credits is a cached copy of the
// backend balance and is replaced after every mutation.
type State struct {
	Phase   Phase
	Wallet  string
	Package int64
	TxHash  string
	Credits int64
	Err     error
	Message string
}

// Processing reports whether a purchase is in flight.
func (s State) Processing() bool {
	switch s.Phase {
	case PhaseSubmitting, PhaseConfirming, PhaseVerifying:
		return true
	}
	return false
}

type Action interface{ isAction() }

type (
	Connected struct {
		Wallet  string
		Credits int64
	}
	Disconnected         struct{}
	PackageSelected      struct{ Credits int64 }
	PaymentStarted       struct{}
	PaymentSubmitted     struct{ Hash string }
	PaymentConfirmed     struct{ Hash string }
	PaymentVerified      struct{ Credits int64 }
	PaymentFailed        struct{ Err error }
	VerificationDeferred struct{ Err error }
	ConfirmationTimedOut struct{ Hash string }
	RecheckStarted       struct{ Hash string }
	CreditsRefreshed     struct{ Credits int64 }
	Reset                struct{}
)

func (Connected) isAction()            {}
func (Disconnected) isAction()         {}
func (PackageSelected) isAction()      {}
func (PaymentStarted) isAction()       {}
func (PaymentSubmitted) isAction()     {}
func (PaymentConfirmed) isAction()     {}
func (PaymentVerified) isAction()      {}
func (PaymentFailed) isAction()        {}
func (VerificationDeferred) isAction() {}
func (ConfirmationTimedOut) isAction() {}
func (RecheckStarted) isAction()       {}
func (CreditsRefreshed) isAction()     {}
func (Reset) isAction()                {}

// Reduce returns the state after a. Actions that do not apply in the current
// phase leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Connected:
		s.Wallet = a.Wallet
		s.Credits = a.Credits
		if !s.Processing() && s.Phase != PhaseAwaitingRecheck {
			s.Phase = PhaseIdle
		}

	case Disconnected:
		return State{Phase: PhaseIdle}

	case PackageSelected:
		if s.Processing() || s.Wallet == "" {
			return s
		}
		s.Phase = PhaseSelecting
		s.Package = a.Credits
		s.Err, s.Message = nil, ""

	case PaymentStarted:
		if s.Phase != PhaseSelecting || s.Package == 0 {
			return s
		}
		s.Phase = PhaseSubmitting
		s.TxHash = ""

	case PaymentSubmitted:
		if s.Phase != PhaseSubmitting {
			return s
		}
		s.Phase = PhaseConfirming
		s.TxHash = a.Hash

	case PaymentConfirmed:
		if s.Phase != PhaseConfirming {
			return s
		}
		s.Phase = PhaseVerifying
		if a.Hash != "" {
			s.TxHash = a.Hash
		}

	case PaymentVerified:
		if s.Phase != PhaseVerifying {
			return s
		}
		s.Phase = PhaseDone
		s.Credits = a.Credits
		s.Package = 0
		s.Err, s.Message = nil, ""

	case PaymentFailed:
		if !s.Processing() {
			return s
		}
		if errors.Is(a.Err, domain.ErrConfirmationTimeout) {
			return Reduce(s, ConfirmationTimedOut{Hash: s.TxHash})
		}
		s.Phase = PhaseFailed
		s.Err = a.Err
		s.Message = domain.UserMessage(a.Err)

	case VerificationDeferred:
		// The payment is on chain but the backend could not be reached; keep
		// the hash so the claim can be sent again.
		if s.Phase != PhaseVerifying {
			return s
		}
		s.Phase = PhaseAwaitingRecheck
		s.Err = a.Err
		s.Message = domain.UserMessage(a.Err)

	case ConfirmationTimedOut:
		if s.Phase != PhaseConfirming {
			return s
		}
		s.Phase = PhaseAwaitingRecheck
		if a.Hash != "" {
			s.TxHash = a.Hash
		}
		s.Err = domain.ErrConfirmationTimeout
		s.Message = domain.UserMessage(domain.ErrConfirmationTimeout)

	case RecheckStarted:
		switch {
		case s.Phase == PhaseAwaitingRecheck, s.Phase == PhaseIdle:
		case s.Phase == PhaseFailed && s.TxHash != "":
		default:
			return s
		}
		s.Phase = PhaseConfirming
		if a.Hash != "" {
			s.TxHash = a.Hash
		}
		s.Err, s.Message = nil, ""

	case CreditsRefreshed:
		s.Credits = a.Credits

	case Reset:
		return State{Phase: PhaseIdle, Wallet: s.Wallet, Credits: s.Credits}
	}
	return s
}
