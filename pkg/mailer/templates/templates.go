package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmpl "html/template"
	"io"
	"reflect"
	"strings"
	"sync"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// EmailData defines standard fields for email templates.
type EmailData struct {
	// Basic info
	Name           string `json:"Name"`
	Email          string `json:"Email"`
	RecipientEmail string `json:"RecipientEmail"`
	Type           string `json:"Type"`

	// Company info
	CompanyName    string `json:"CompanyName"`
	CompanyAddress string `json:"CompanyAddress"`
	AppName        string `json:"AppName"`

	// URLs
	LogoURL        string `json:"LogoURL"`
	SupportURL     string `json:"SupportURL"`
	PrivacyURL     string `json:"PrivacyURL"`
	UnsubscribeURL string `json:"UnsubscribeURL"`

	// Action URLs
	InviteURL string `json:"InviteURL"`

	// Additional data
	Role          string    `json:"Role"`
	ExpiresAt     time.Time `json:"ExpiresAt"`
	ExpiresAtText string    `json:"ExpiresAtText"`
}

// ToMap converts EmailData to a map[string]any for EmailJob.Data
func ToMap(d EmailData) map[string]any {
	b, _ := json.Marshal(d)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return fallback
		}
		zero := reflect.Zero(rv.Type()).Interface()
		if reflect.DeepEqual(value, zero) {
			return fallback
		}
		return value
	}
}

// titleFn renders an enum such as SUPER_ADMIN as "Super Admin".
func titleFn(s string) string {
	parts := strings.Fields(strings.ReplaceAll(strings.ToLower(s), "_", " "))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func funcs() map[string]any {
	return map[string]any{
		"now":        func() time.Time { return time.Now().UTC() },
		"formatTime": func(t time.Time, layout string) string { return t.Format(layout) },
		"upper":      strings.ToUpper,
		"title":      titleFn,
		"default":    defaultFn,
	}
}

// Template names. Each needs <name>.subject.tmpl, <name>.text.tmpl and <name>.html.tmpl.
const (
	Invite = "invite"
)

// The embedded set is parsed once; a broken template fails the first Render.
var (
	parseOnce sync.Once
	textSet   *texttpl.Template
	htmlSet   *htmpl.Template
	parseErr  error
)

func load() error {
	parseOnce.Do(func() {
		textSet, parseErr = texttpl.New("").Funcs(texttpl.FuncMap(funcs())).ParseFS(FS, "*.subject.tmpl", "*.text.tmpl")
		if parseErr != nil {
			parseErr = fmt.Errorf("parse text templates: %w", parseErr)
			return
		}
		htmlSet, parseErr = htmpl.New("").Funcs(htmpl.FuncMap(funcs())).ParseFS(FS, "*.html.tmpl")
		if parseErr != nil {
			parseErr = fmt.Errorf("parse html templates: %w", parseErr)
		}
	})
	return parseErr
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

func exec(set executor, file string, data any) (string, error) {
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, file, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", file, err)
	}
	return buf.String(), nil
}

// Render produces the subject, text and html bodies for the named template.
func Render(name string, data any) (subject string, text string, html string, err error) {
	if err := load(); err != nil {
		return "", "", "", err
	}
	if subject, err = exec(textSet, name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = exec(textSet, name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	if html, err = exec(htmlSet, name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return subject, text, html, nil
}
