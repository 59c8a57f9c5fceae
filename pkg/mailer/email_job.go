package mailer

import (
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/course-identity/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "invite"
	Data     map[string]any `json:"data,omitempty"`
}

// EnsureRecipient copies To into the Email/RecipientEmail template fields when they are blank.
func (j *EmailJob) EnsureRecipient() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	for _, k := range []string{"Email", "RecipientEmail"} {
		if v, ok := j.Data[k]; !ok || fmt.Sprintf("%v", v) == "" {
			j.Data[k] = j.To
		}
	}
}

// Compose returns the subject, text and html to send. Template jobs are rendered;
// inline jobs are returned as given.
func (j *EmailJob) Compose() (subject, text, html string, err error) {
	if strings.TrimSpace(j.To) == "" {
		return "", "", "", fmt.Errorf("email job without recipient")
	}
	if j.Template == "" {
		if j.Text == "" && j.HTML == "" {
			return "", "", "", fmt.Errorf("email job without body")
		}
		return j.Subject, j.Text, j.HTML, nil
	}
	j.EnsureRecipient()
	subject, text, html, err = mailtpl.Render(strings.ToLower(j.Template), j.Data)
	if err != nil {
		return "", "", "", err
	}
	if j.Subject != "" {
		subject = j.Subject
	}
	return strings.TrimSpace(subject), text, html, nil
}
