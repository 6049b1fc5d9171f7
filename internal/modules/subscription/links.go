package subscription

import "net/url"

const (
	defaultWebBaseURL = "https://blog.ordbokapi.org"
	defaultAPIBaseURL = "https://blog-api.ordbokapi.org"
)

// Links builds the user-facing URLs embedded in outbound emails. WebBaseURL
// points at pages a human clicks through; APIBaseURL is used for the
// List-Unsubscribe header, which mail clients hit without user interaction.
type Links struct {
	WebBaseURL string
	APIBaseURL string
}

// NewLinks fills empty fields with the production defaults.
func NewLinks(webBaseURL, apiBaseURL string) Links {
	if webBaseURL == "" {
		webBaseURL = defaultWebBaseURL
	}
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	return Links{WebBaseURL: webBaseURL, APIBaseURL: apiBaseURL}
}

func withToken(base, path, token string) string {
	return base + path + "?token=" + url.QueryEscape(token)
}

// VerifyURL is the page where a pending subscriber confirms their address.
func (l Links) VerifyURL(token string) string {
	return withToken(l.WebBaseURL, "/verify", token)
}

// UnsubscribeURL is the page linked from email bodies.
func (l Links) UnsubscribeURL(token string) string {
	return withToken(l.WebBaseURL, "/unsubscribe", token)
}

// AutoUnsubscribeURL is the endpoint used in the List-Unsubscribe header.
func (l Links) AutoUnsubscribeURL(token string) string {
	return withToken(l.APIBaseURL, "/unsubscribe", token)
}
