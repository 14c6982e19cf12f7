package receipt

import (
	"context"
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/notification"
)

const sendTimeout = 30 * time.Second

// Emailer sends the final receipt to the owner after each checkout.
type Emailer struct {
	mailer notification.Mailer
	loc    *time.Location
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewEmailer creates an Emailer delivering through m.
func NewEmailer(m notification.Mailer, loc *time.Location) *Emailer {
	return &Emailer{mailer: m, loc: loc, now: time.Now}
}

// HandleEvent sends the receipt for checkout events in the background.
func (e *Emailer) HandleEvent(ev events.Event) {
	if ev.Kind != events.SessionCheckedOut || ev.Session == nil || ev.Locker == nil {
		return
	}
	if ev.Session.OwnerEmail == "" {
		return
	}

	r := Build(*ev.Session, *ev.Locker, e.loc, e.now())
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := e.Send(ctx, r); err != nil {
			log.Printf("Failed to email receipt %s: %v", r.TagNumber, err)
		}
	}()
}

// Send emails r with its PDF attached.
func (e *Emailer) Send(ctx context.Context, r Receipt) error {
	pdf, err := RenderPDF(r)
	if err != nil {
		return err
	}
	return e.mailer.Send(ctx, notification.Email{
		ToName:    r.OwnerName,
		ToAddress: r.OwnerEmail,
		Subject:   fmt.Sprintf("Your luggage storage receipt %s", r.TagNumber),
		PlainText: r.Text(),
		HTML:      "<pre>" + html.EscapeString(r.Text()) + "</pre>",
		Attachments: []notification.Attachment{
			{Filename: r.TagNumber + ".pdf", ContentType: "application/pdf", Content: pdf},
		},
	})
}

// Wait blocks until every pending receipt email has been attempted.
func (e *Emailer) Wait() {
	e.wg.Wait()
}
