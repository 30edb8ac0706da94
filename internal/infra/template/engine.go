package template

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"shipnotify/internal/domain/notification"
)

var _ notification.TemplateRenderer = (*Engine)(nil)

// templateMeta holds the subject and body template for a notification type.
type templateMeta struct {
	Subject      string
	TemplateName string
}

// registry maps notification types to their email metadata.
var registry = map[notification.NotificationType]templateMeta{
	notification.TypeShipmentStatus:       {Subject: "Shipment update", TemplateName: "shipment"},
	notification.TypeShipmentCreated:      {Subject: "Your shipment was created", TemplateName: "shipment"},
	notification.TypeShipmentUpdated:      {Subject: "Your shipment was updated", TemplateName: "shipment"},
	notification.TypeDeliveryConfirmation: {Subject: "Your shipment was delivered", TemplateName: "shipment"},
	notification.TypeSystemAlert:          {Subject: "System alert", TemplateName: "alert"},
	notification.TypeUserMessage:          {Subject: "New message", TemplateName: "message"},
	notification.TypeConflictResolution:   {Subject: "Action required", TemplateName: "message"},
}

const layout = `{{define "header"}}<html><body style="font-family:sans-serif">
<h2>{{.Title}}</h2>{{end}}
{{define "footer"}}{{with .Link}}<p><a href="{{.}}">View details</a></p>{{end}}
<p style="color:#888">Mini-UPS notifications</p></body></html>{{end}}
{{define "shipment.html"}}{{template "header" .}}
<p>{{.Message}}</p>
{{with .TrackingNumber}}<p>Tracking number: <b>{{.}}</b></p>{{end}}
{{template "footer" .}}{{end}}
{{define "alert.html"}}{{template "header" .}}
<p style="color:#b00">{{.Message}}</p>
{{template "footer" .}}{{end}}
{{define "message.html"}}{{template "header" .}}
<p>{{.Message}}</p>
{{template "footer" .}}{{end}}`

// view is the data handed to a template.
type view struct {
	Title          string
	Message        string
	TrackingNumber string
	Link           string
}

// Engine renders notification emails using Go's html/template package.
type Engine struct {
	templates *template.Template
	baseURL   string
}

// NewEngine parses the built-in templates. baseURL prefixes relative action links.
func NewEngine(baseURL string) (*Engine, error) {
	tmpl, err := template.New("email").Parse(layout)
	if err != nil {
		return nil, fmt.Errorf("parsing email templates: %w", err)
	}
	return &Engine{templates: tmpl, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Render produces a subject line, HTML body, and plain-text fallback for the notification.
func (e *Engine) Render(n *notification.Notification) (subject, html, text string, err error) {
	meta, ok := registry[n.Type]
	if !ok {
		return "", "", "", fmt.Errorf("no template registered for type: %s", n.Type)
	}

	subject = meta.Subject
	if n.Title != "" {
		subject = n.Title
	}
	if n.Priority == notification.PriorityCritical {
		subject = "[Urgent] " + subject
	}

	v := view{Title: n.Title, Message: n.Message}
	if n.RelatedEntityType == "shipment" {
		v.TrackingNumber = n.RelatedEntityID
	}
	if a := n.PrimaryAction(); a != nil {
		if u, ok := a.Payload["url"].(string); ok {
			v.Link = e.link(u)
		}
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, meta.TemplateName+".html", v); err != nil {
		return "", "", "", fmt.Errorf("executing template %s: %w", meta.TemplateName, err)
	}
	html = buf.String()
	text = stripHTML(html)

	return subject, html, text, nil
}

func (e *Engine) link(u string) string {
	if strings.HasPrefix(u, "/") {
		return e.baseURL + u
	}
	return u
}

var (
	tagRe = regexp.MustCompile(`<[^>]*>`)
	wsRe  = regexp.MustCompile(`\s+`)
)

// stripHTML removes HTML tags and collapses whitespace to produce a plain-text version.
func stripHTML(s string) string {
	text := tagRe.ReplaceAllString(s, " ")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	text = wsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
