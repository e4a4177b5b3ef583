package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

type Template string

const (
	TemplateSignUp                        Template = "sign-up"
	TemplatePasswordChanged               Template = "password-changed"
	TemplateMailAddressChangeConfirmation Template = "mail-address-change-confirmation"
	TemplateGDPRDataExport                Template = "gdpr-data-export"
)

var knownTemplates = []Template{
	TemplateSignUp,
	TemplatePasswordChanged,
	TemplateMailAddressChangeConfirmation,
	TemplateGDPRDataExport,
}

//go:embed templates/*.html
var templateFiles embed.FS

// Message is a rendered mail ready to be delivered.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Renderer renders the embedded templates. Each template file defines a
// "subject" and a "body" block.
type Renderer struct {
	templates map[Template]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Template]*template.Template, len(knownTemplates))}

	for _, name := range knownTemplates {
		tmpl, err := template.New(string(name)).
			Option("missingkey=error").
			ParseFS(templateFiles, "templates/"+string(name)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

func (r *Renderer) Has(name Template) bool {
	_, ok := r.templates[name]
	return ok
}

func (r *Renderer) Render(name Template, to string, params map[string]interface{}) (Message, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", params); err != nil {
		return Message{}, fmt.Errorf("failed to render subject of %s: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", params); err != nil {
		return Message{}, fmt.Errorf("failed to render body of %s: %w", name, err)
	}

	return Message{To: to, Subject: subject.String(), Body: body.String()}, nil
}
