// Package mail delivers rendered emails over SMTP (gomail) or the Resend
// HTTP API. It is the transport boundary: a returned error means the message
// was not handed off, with no partial side effects to clean up.
package mail

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrTransport marks failures to reach the mail backend (dial, auth, TLS).
// The supervisor treats a process exiting for this reason differently from a
// generic crash: the dependency is down, so the restart is delayed.
var ErrTransport = errors.New("mail transport unavailable")

// Config holds mail provider settings.
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

// Message is a single email to send. ListUnsubscribeURL, when set, is emitted
// as a List-Unsubscribe header so mail clients can offer one-click
// unsubscribe without user interaction.
type Message struct {
	To                 string
	Subject            string
	Text               string
	HTML               string
	ListUnsubscribeURL string
}

// Sender sends emails via SMTP or Resend.
type Sender struct {
	cfg    Config
	dialer *gomail.Dialer
	client *http.Client
}

func New(cfg Config) *Sender {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &Sender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Pass),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Verify dials the SMTP server once to confirm the transport is reachable
// before the dispatch worker starts draining the queue.
func (s *Sender) Verify() error {
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return nil
	}
	closer, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return closer.Close()
}

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
func (s *Sender) Send(msg Message) error {
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(msg)
	}
	return s.sendSMTP(msg)
}

func (s *Sender) sendSMTP(msg Message) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ListUnsubscribeURL != "" {
		m.SetHeader("List-Unsubscribe", "<"+msg.ListUnsubscribeURL+">")
	}
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	return s.dialer.DialAndSend(m)
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(msg Message) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	body := map[string]interface{}{
		"from":    from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Text,
		"html":    msg.HTML,
	}
	if msg.ListUnsubscribeURL != "" {
		body["headers"] = map[string]string{
			"List-Unsubscribe": "<" + msg.ListUnsubscribeURL + ">",
		}
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}
