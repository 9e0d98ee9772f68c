package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"playermail/internal/components/assert"
	"playermail/internal/components/chrono"
	"playermail/internal/components/telemetry"
	"playermail/internal/scrapers/gameserver"
	"time"

	"github.com/google/uuid"
)

const (
	report_dispatcher_send      = "dispatcher.send"
	report_dispatcher_reauth    = "dispatcher.reauth"
	report_dispatcher_persist   = "dispatcher.persist"
	report_dispatcher_journal   = "dispatcher.journal"
	report_dispatcher_remaining = "dispatcher.remaining"
)

// WritePath is where messages are submitted.
const WritePath = "/messages/write"

// Sender is satisfied by *gameserver.Client.
type Sender interface {
	AuthenticatedSubmit(ctx context.Context, path string, form map[string]string) (gameserver.Response, error)
	IsSessionLost(res gameserver.Response) bool
	Login(ctx context.Context) (gameserver.Session, error)
}

// Store is satisfied by Queue.
type Store interface {
	Load() ([]string, error)
	Save(roster []string) error
}

// Entry is a single dispatch attempt as handed to a Recorder.
type Entry struct {
	RunID     string
	Recipient string
	Outcome   Outcome
	Reason    string
	At        time.Time
}

// Recorder keeps a history of dispatch attempts, it never influences the
// outcome of a dispatch.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Options struct {
	Sender   Sender
	Queue    Store
	Template MessageTemplate
	// Delay is waited after every successful send that leaves work behind.
	Delay  time.Duration
	Chrono chrono.API
	// Recorder can be nil.
	Recorder Recorder
}

type Dispatcher struct {
	sender   Sender
	queue    Store
	template MessageTemplate
	delay    time.Duration
	chrono   chrono.API
	recorder Recorder
	tel      telemetry.API
}

func NewDispatcher(opts Options, tel telemetry.API) *Dispatcher {
	assert.NotNil(opts.Sender)
	assert.NotNil(opts.Queue)
	assert.NotNil(opts.Chrono)
	assert.NotNil(tel)
	if opts.Delay < 0 {
		panic("dispatch delay must not be negative")
	}

	return &Dispatcher{
		sender:   opts.Sender,
		queue:    opts.Queue,
		template: opts.Template,
		delay:    opts.Delay,
		chrono:   opts.Chrono,
		recorder: opts.Recorder,
		tel:      telemetry.NewScopedAPI("dispatch", tel),
	}
}

func (d *Dispatcher) form(recipient string) map[string]string {
	return map[string]string{
		"an":      recipient,
		"be":      d.template.Subject,
		"message": d.template.Body,
	}
}

func (d *Dispatcher) submit(ctx context.Context, recipient string) (gameserver.Response, error) {
	res, err := d.sender.AuthenticatedSubmit(ctx, WritePath, d.form(recipient))
	if errors.Is(err, gameserver.ErrNoSession) {
		return res, fmt.Errorf("%w: send to %s: %w", ErrFailed, recipient, err)
	}
	if err != nil {
		return res, fmt.Errorf("%w: send to %s: %w", ErrTransport, recipient, err)
	}
	return res, nil
}

func checkStatus(recipient string, res gameserver.Response) error {
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: send to %s: status %d", ErrFailed, recipient, res.StatusCode)
	}
	return nil
}

// SendOne delivers the template to a single recipient. If the response shows
// the session was lost, it logs back in and retries exactly once.
func (d *Dispatcher) SendOne(ctx context.Context, recipient string) (Outcome, error) {
	res, err := d.submit(ctx, recipient)
	if err != nil {
		return OutcomeFailed, err
	}
	if !d.sender.IsSessionLost(res) {
		err = checkStatus(recipient, res)
		if err != nil {
			return OutcomeFailed, err
		}
		return OutcomeSent, nil
	}

	d.tel.ReportWarning(report_dispatcher_reauth, "session lost", recipient, res.FinalURL)

	_, err = d.sender.Login(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: log back in before resending to %s: %w", ErrFailed, recipient, err)
	}

	res, err = d.submit(ctx, recipient)
	if err != nil {
		return OutcomeFailed, err
	}
	if d.sender.IsSessionLost(res) {
		return OutcomeFailed, fmt.Errorf("%w: send to %s", ErrSessionLostTwice, recipient)
	}
	err = checkStatus(recipient, res)
	if err != nil {
		return OutcomeFailed, err
	}
	return OutcomeSentAfterReauth, nil
}

func (d *Dispatcher) record(ctx context.Context, runId, recipient string, outcome Outcome, sendErr error) {
	if d.recorder == nil {
		return
	}
	reason := ""
	if sendErr != nil {
		reason = sendErr.Error()
	}
	// an attempt cut short by cancellation is still journaled
	err := d.recorder.Record(context.WithoutCancel(ctx), Entry{
		RunID:     runId,
		Recipient: recipient,
		Outcome:   outcome,
		Reason:    reason,
		At:        d.chrono.Now(),
	})
	if err != nil {
		d.tel.ReportWarning(report_dispatcher_journal, err, recipient)
	}
}

// Run sends to every recipient left in the queue, last one first. The queue
// is persisted after each successful send, the first failure stops the run
// and leaves the failed recipient in the queue.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}

	roster, err := d.queue.Load()
	if err != nil {
		d.tel.ReportBroken(report_dispatcher_persist, fmt.Errorf("load: %w", err))
		return report, err
	}
	report.Remaining = len(roster)

	for {
		err := ctx.Err()
		if err != nil {
			return report, err
		}

		recipient, remaining, ok := PopNext(roster)
		if !ok {
			break
		}
		d.tel.ReportCount(report_dispatcher_remaining, int64(len(roster)))

		outcome, err := d.SendOne(ctx, recipient)
		d.record(ctx, report.RunID, recipient, outcome, err)
		report.Outcomes = append(report.Outcomes, RecipientOutcome{
			Recipient: recipient,
			Outcome:   outcome,
			Err:       err,
		})
		if err != nil {
			d.tel.ReportBroken(report_dispatcher_send, err, recipient)
			return report, err
		}

		err = d.queue.Save(remaining)
		if err != nil {
			d.tel.ReportBroken(report_dispatcher_persist, fmt.Errorf("save: %w", err), recipient)
			return report, fmt.Errorf("persist after sending to %s: %w", recipient, err)
		}
		roster = remaining
		report.Remaining = len(roster)

		if len(roster) > 0 {
			err = d.chrono.Sleep(ctx, d.delay)
			if err != nil {
				return report, err
			}
		}
	}

	return report, nil
}
