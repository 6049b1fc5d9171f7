// Package template renders the closed set of outbound email kinds. Each kind
// has a strongly typed data struct; there is no string-keyed lookup into an
// open template registry, and all templates are parsed once at Engine
// construction rather than registered globally.
package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

// ID identifies one email kind on the wire (stored inside queued jobs).
type ID string

const (
	Verification ID = "verification"
	Welcome      ID = "signed-up"
	NewPost      ID = "new-post"
)

// Data is the sealed set of per-kind template parameters.
type Data interface {
	templateID() ID
}

// VerificationData parameterizes the address-confirmation email.
type VerificationData struct {
	VerificationURL string
}

func (VerificationData) templateID() ID { return Verification }

// WelcomeData parameterizes the post-verification welcome email.
type WelcomeData struct {
	UnsubscribeURL string
}

func (WelcomeData) templateID() ID { return Welcome }

// NewPostData parameterizes the new-blog-post broadcast email.
type NewPostData struct {
	Title          string
	URL            string
	Summary        string
	UnsubscribeURL string
}

func (NewPostData) templateID() ID { return NewPost }

// ForJob rebuilds typed template data from a queued job's parameter map.
// unsubscribeURL is empty for kinds that do not carry an unsubscribe link.
func ForJob(id ID, params map[string]string, unsubscribeURL string) (Data, error) {
	switch id {
	case Verification:
		return VerificationData{VerificationURL: params["verificationUrl"]}, nil
	case Welcome:
		return WelcomeData{UnsubscribeURL: unsubscribeURL}, nil
	case NewPost:
		return NewPostData{
			Title:          params["title"],
			URL:            params["url"],
			Summary:        params["summary"],
			UnsubscribeURL: unsubscribeURL,
		}, nil
	default:
		return nil, fmt.Errorf("template: unknown template %q", id)
	}
}

const textWidth = 80

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Engine holds the parsed templates for every email kind.
type Engine struct {
	templates map[ID]pair
}

// NewEngine parses all templates. Parse failures are programmer errors and
// surface at startup.
func NewEngine() (*Engine, error) {
	funcs := map[string]any{
		"year": func() int { return time.Now().Year() },
	}

	sources := map[ID][2]string{
		Verification: {verificationHTML, verificationText},
		Welcome:      {welcomeHTML, welcomeText},
		NewPost:      {newPostHTML, newPostText},
	}

	templates := make(map[ID]pair, len(sources))
	for id, src := range sources {
		h, err := htmltemplate.New(string(id)).Funcs(funcs).Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("template: parse %s html: %w", id, err)
		}
		t, err := texttemplate.New(string(id)).Funcs(funcs).Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("template: parse %s text: %w", id, err)
		}
		templates[id] = pair{html: h, text: t}
	}
	return &Engine{templates: templates}, nil
}

// Render produces the HTML and plain-text bodies for one email. The text
// body is wrapped at 80 columns.
func (e *Engine) Render(data Data) (html, text string, err error) {
	p, ok := e.templates[data.templateID()]
	if !ok {
		return "", "", fmt.Errorf("template: unknown template %q", data.templateID())
	}

	var hb, tb bytes.Buffer
	if err := p.html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("template: render %s html: %w", data.templateID(), err)
	}
	if err := p.text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("template: render %s text: %w", data.templateID(), err)
	}
	return hb.String(), WrapText(tb.String(), textWidth), nil
}
