package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"eventmanager/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// Templates is the parsed set of embedded email templates. Each message name
// needs three files: <name>_subject.txt, <name>.txt and <name>.html.
type Templates struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

// NewTemplateRenderer parses the embedded templates once. It panics on a
// malformed template since they ship inside the binary.
func NewTemplateRenderer() *Templates {
	return &Templates{
		text: texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt")),
		html: htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html")),
	}
}

// Render executes the subject, html and text parts of templateName.
func (t *Templates) Render(templateName string, data any) (domain.EmailMessage, error) {
	var msg domain.EmailMessage
	subject, err := t.execText(templateName+"_subject.txt", data)
	if err != nil {
		return msg, fmt.Errorf("render %s subject: %w", templateName, err)
	}
	msg.Subject = strings.Join(strings.Fields(subject), " ")

	if msg.Text, err = t.execText(templateName+".txt", data); err != nil {
		return msg, fmt.Errorf("render %s text: %w", templateName, err)
	}

	tmpl := t.html.Lookup(templateName + ".html")
	if tmpl == nil {
		return msg, fmt.Errorf("render %s html: template not found", templateName)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return msg, fmt.Errorf("render %s html: %w", templateName, err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

func (t *Templates) execText(name string, data any) (string, error) {
	tmpl := t.text.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
