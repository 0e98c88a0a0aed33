package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

var ErrNoRecipient = errors.New("no email recipient configured")

var (
	_ compliance.Dispatcher = (*Dispatcher)(nil)
	_ compliance.Resetter   = (*Dispatcher)(nil)
)

// Renderer turns a template key into message text. Hosts supply their own copy.
type Renderer interface {
	Render(templateKey string) (subject, body string)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(templateKey string) (string, string)

func (f RendererFunc) Render(templateKey string) (string, string) { return f(templateKey) }

// KeyRenderer renders only the template key.
var KeyRenderer = RendererFunc(func(templateKey string) (string, string) {
	return "Pulse license notice: " + templateKey, templateKey
})

// Dispatcher delivers compliance notifications through an email Sender and a
// NoticeBoard.
type Dispatcher struct {
	sender   Sender
	board    *NoticeBoard
	renderer Renderer
	from     string
	to       []string
}

// NewDispatcher builds a dispatcher. to may hold several comma-separated addresses.
func NewDispatcher(sender Sender, board *NoticeBoard, renderer Renderer, from, to string) *Dispatcher {
	if renderer == nil {
		renderer = KeyRenderer
	}
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return &Dispatcher{
		sender:   sender,
		board:    board,
		renderer: renderer,
		from:     strings.TrimSpace(from),
		to:       recipients,
	}
}

// SendEmail emails every recipient. It succeeds when at least one recipient
// accepted the message; failed recipients are logged and not retried.
func (d *Dispatcher) SendEmail(ctx context.Context, templateKey string) error {
	if d.sender == nil {
		return errors.New("no email sender configured")
	}
	if len(d.to) == 0 {
		return ErrNoRecipient
	}

	subject, body := d.renderer.Render(templateKey)
	var errs []error
	for _, to := range d.to {
		err := d.sender.Send(ctx, Message{From: d.from, To: to, Subject: subject, Text: body})
		if err != nil {
			log.Warn().Err(err).Str("to", to).Str("template", templateKey).Msg("Failed to send compliance email")
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
		}
	}
	if len(errs) == len(d.to) {
		return errors.Join(errs...)
	}
	if len(errs) > 0 {
		log.Warn().
			Int("failed", len(errs)).
			Int("recipients", len(d.to)).
			Str("template", templateKey).
			Msg("Compliance email reached only some recipients")
	}
	return nil
}

// Reset clears the notice board once the license is back in good standing.
func (d *Dispatcher) Reset(ctx context.Context) error {
	if d.board == nil {
		return nil
	}
	return d.board.Clear(ctx)
}

// PostInProductNotice adds a notice to the board.
func (d *Dispatcher) PostInProductNotice(ctx context.Context, templateKey string) error {
	if d.board == nil {
		return errors.New("no notice board configured")
	}
	subject, body := d.renderer.Render(templateKey)
	notice, err := d.board.Post(ctx, templateKey, subject, body)
	if err != nil {
		log.Warn().Err(err).Str("template", templateKey).Msg("Failed to post compliance notice")
		return err
	}
	log.Debug().Str("id", notice.ID).Str("template", templateKey).Msg("Compliance notice posted")
	return nil
}
