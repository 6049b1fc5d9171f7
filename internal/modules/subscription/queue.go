package subscription

import (
	"context"

	tpl "github.com/ordbokapi/notify/internal/pkg/template"
)

// Subjects are fixed per email kind; only the new-post subject varies with
// content.
const (
	subjectVerification  = "Ordbok API Utviklingsblogg: Stadfest e-postadressa di"
	subjectWelcome       = "Ordbok API Utviklingsblogg: Velkomen!"
	subjectNewPostPrefix = "Ordbok API Utviklingsblogg: Ny bloggpost: "
)

// QueueVerificationEmail queues the address-confirmation email for one
// pending subscriber.
func (s *Service) QueueVerificationEmail(ctx context.Context, email, verificationToken string) error {
	return s.QueueEmail(ctx, Job{
		Template:  tpl.Verification,
		Subject:   subjectVerification,
		Params:    map[string]string{"verificationUrl": s.links.VerifyURL(verificationToken)},
		Addresses: []string{email},
	})
}

// QueueWelcomeEmail queues the welcome email sent right after verification.
func (s *Service) QueueWelcomeEmail(ctx context.Context, email string) error {
	return s.QueueEmail(ctx, Job{
		Template:             tpl.Welcome,
		Subject:              subjectWelcome,
		Params:               map[string]string{},
		Addresses:            []string{email},
		NeedsUnsubscribeLink: true,
	})
}

// QueueNewPostEmail queues a broadcast announcing a new blog post to every
// current subscriber.
func (s *Service) QueueNewPostEmail(ctx context.Context, title, url, summary string) error {
	return s.QueueEmail(ctx, Job{
		Template: tpl.NewPost,
		Subject:  subjectNewPostPrefix + title,
		Params: map[string]string{
			"title":   title,
			"url":     url,
			"summary": summary,
		},
		NeedsUnsubscribeLink: true,
	})
}
