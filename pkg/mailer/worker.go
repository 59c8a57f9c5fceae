package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sender delivers one rendered message. *Mailgun implements it.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Handle decodes, renders and sends one queued job. requeue reports whether a
// failure is transient (delivery) rather than permanent (bad payload or template).
func Handle(ctx context.Context, body []byte, s Sender) (requeue bool, err error) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return false, fmt.Errorf("bad message: %w", err)
	}
	subject, text, html, err := job.Compose()
	if err != nil {
		return false, fmt.Errorf("render %s: %w", job.Template, err)
	}
	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.Send(c, job.To, subject, text, html); err != nil {
		return true, fmt.Errorf("send: %w", err)
	}
	return false, nil
}
