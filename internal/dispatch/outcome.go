package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrSessionLostTwice = errors.New("session was lost again right after logging back in")
	ErrTransport        = errors.New("could not reach the server")
	ErrFailed           = errors.New("message was not sent")
)

type Outcome int

const (
	// OutcomeFailed is the zero value so an unset outcome never reads as a send.
	OutcomeFailed Outcome = iota
	OutcomeSent
	OutcomeSentAfterReauth
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSentAfterReauth:
		return "sent_after_reauth"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Delivered is true for both successful outcomes.
func (o Outcome) Delivered() bool {
	return o == OutcomeSent || o == OutcomeSentAfterReauth
}

// MessageTemplate is sent unchanged to every recipient.
type MessageTemplate struct {
	Subject string
	Body    string
}

// RecipientOutcome is the result of dispatching to a single recipient.
type RecipientOutcome struct {
	Recipient string
	Outcome   Outcome
	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// Report summarizes a dispatch run, Outcomes is in send order.
type Report struct {
	RunID    string
	Outcomes []RecipientOutcome
	// Remaining is how many recipients are still persisted in the queue.
	Remaining int
}
