package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/pkg/cipher"
	"github.com/ordbokapi/notify/internal/pkg/redis"
)

// DefaultPendingTTL is how long a verification token stays valid.
const DefaultPendingTTL = 30 * time.Minute

// Store key layout. Every field and value is encrypted individually before it
// reaches the store; the store never sees a plaintext email or token.
//
//	emailQueue               list   enc(json job)
//	unsubscribeTokensByEmail hash   enc(email) -> enc(token)
//	emailByUnsubscribeToken  hash   enc(token) -> enc(email)
//	verify_{enc(token)}      string enc(email), with TTL
const (
	keyEmailQueue               = "emailQueue"
	keyUnsubscribeTokensByEmail = "unsubscribeTokensByEmail"
	keyEmailByUnsubscribeToken  = "emailByUnsubscribeToken"
	pendingKeyPrefix            = "verify_"
)

// Service is the subscriber registry. It owns the subscribe → verify →
// unsubscribe state machine, the outbound job queue, and the entire key
// layout; it is the only component that encrypts and decrypts stored values.
type Service struct {
	store      redis.Store
	cipher     *cipher.Cipher
	links      Links
	pendingTTL time.Duration
	log        *zap.Logger
}

// NewService builds the registry. A zero pendingTTL falls back to
// DefaultPendingTTL.
func NewService(store redis.Store, c *cipher.Cipher, links Links, pendingTTL time.Duration, log *zap.Logger) *Service {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &Service{
		store:      store,
		cipher:     c,
		links:      links,
		pendingTTL: pendingTTL,
		log:        log,
	}
}

// Links returns the URL builder shared with the dispatch worker.
func (s *Service) Links() Links { return s.links }

// newToken returns 16 random bytes hex-encoded. Used for both verification
// and unsubscribe tokens; the two namespaces are otherwise independent.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) pendingKey(token string) string {
	return pendingKeyPrefix + s.cipher.Encrypt(token)
}

// Subscribe registers interest for an email. If the address is already a
// verified subscriber this is a no-op; otherwise a pending record is written
// under the verification-token TTL and a verification email is queued.
// Idempotent from the caller's point of view.
func (s *Service) Subscribe(ctx context.Context, email string) error {
	subscribed, err := s.IsSubscribed(ctx, email)
	if err != nil {
		return err
	}
	if subscribed {
		s.log.Debug("already subscribed", zap.String("email", email))
		return nil
	}

	token, err := newToken()
	if err != nil {
		return err
	}

	if err := s.store.SetWithTTL(ctx, s.pendingKey(token), s.cipher.Encrypt(email), s.pendingTTL); err != nil {
		return fmt.Errorf("store pending subscriber: %w", err)
	}

	if err := s.QueueVerificationEmail(ctx, email, token); err != nil {
		return err
	}

	s.log.Debug("subscribed", zap.String("email", email))
	return nil
}

// Verify promotes a pending subscriber to a full subscriber. Returns false
// when the token is unknown or expired; a second call with the same token
// also returns false because the pending record is deleted on success.
func (s *Service) Verify(ctx context.Context, verificationToken string) (bool, error) {
	pending, err := s.PendingSubscriber(ctx, verificationToken)
	if err != nil {
		return false, err
	}
	if pending == nil {
		s.log.Debug("invalid or expired verification token")
		return false, nil
	}

	unsubscribeToken, err := newToken()
	if err != nil {
		return false, err
	}

	encEmail := s.cipher.Encrypt(pending.Email)
	encToken := s.cipher.Encrypt(unsubscribeToken)
	if err := s.store.HashSet(ctx, keyUnsubscribeTokensByEmail, encEmail, encToken); err != nil {
		return false, fmt.Errorf("store subscriber: %w", err)
	}
	if err := s.store.HashSet(ctx, keyEmailByUnsubscribeToken, encToken, encEmail); err != nil {
		return false, fmt.Errorf("store subscriber reverse mapping: %w", err)
	}

	if _, err := s.RemovePendingSubscriber(ctx, verificationToken); err != nil {
		return false, err
	}

	if err := s.QueueWelcomeEmail(ctx, pending.Email); err != nil {
		return false, err
	}

	s.log.Debug("verified", zap.String("email", pending.Email))
	return true, nil
}

// Unsubscribe removes a subscriber by unsubscribe token. Both hash directions
// are deleted; the forward entry is addressed by re-encrypting the plaintext
// email, never by reusing a ciphertext fetched from the other namespace.
func (s *Service) Unsubscribe(ctx context.Context, unsubscribeToken string) (bool, error) {
	encToken := s.cipher.Encrypt(unsubscribeToken)
	encEmail, err := s.store.HashGet(ctx, keyEmailByUnsubscribeToken, encToken)
	if err != nil {
		return false, err
	}
	if encEmail == "" {
		s.log.Debug("invalid unsubscribe token")
		return false, nil
	}

	email, err := s.cipher.Decrypt(encEmail)
	if err != nil {
		return false, err
	}

	if _, err := s.store.HashDelete(ctx, keyUnsubscribeTokensByEmail, s.cipher.Encrypt(email)); err != nil {
		return false, err
	}
	if _, err := s.store.HashDelete(ctx, keyEmailByUnsubscribeToken, encToken); err != nil {
		return false, err
	}

	s.log.Debug("unsubscribed", zap.String("email", email))
	return true, nil
}

// IsSubscribed reports whether the email has a live unsubscribe token.
func (s *Service) IsSubscribed(ctx context.Context, email string) (bool, error) {
	return s.store.HashExists(ctx, keyUnsubscribeTokensByEmail, s.cipher.Encrypt(email))
}

// PendingSubscriber looks up a pending record by verification token. Returns
// nil when absent or expired.
func (s *Service) PendingSubscriber(ctx context.Context, verificationToken string) (*PendingSubscriber, error) {
	encEmail, err := s.store.Get(ctx, s.pendingKey(verificationToken))
	if err != nil {
		return nil, err
	}
	if encEmail == "" {
		return nil, nil
	}
	email, err := s.cipher.Decrypt(encEmail)
	if err != nil {
		return nil, err
	}
	return &PendingSubscriber{Email: email, VerificationToken: verificationToken}, nil
}

// RemovePendingSubscriber deletes a pending record explicitly.
func (s *Service) RemovePendingSubscriber(ctx context.Context, verificationToken string) (bool, error) {
	return s.store.Delete(ctx, s.pendingKey(verificationToken))
}

// Subscribers returns every verified subscriber with their unsubscribe token.
func (s *Service) Subscribers(ctx context.Context) ([]Subscriber, error) {
	encrypted, err := s.store.HashGetAll(ctx, keyUnsubscribeTokensByEmail)
	if err != nil {
		return nil, err
	}

	subs := make([]Subscriber, 0, len(encrypted))
	for encEmail, encToken := range encrypted {
		email, err := s.cipher.Decrypt(encEmail)
		if err != nil {
			return nil, err
		}
		token, err := s.cipher.Decrypt(encToken)
		if err != nil {
			return nil, err
		}
		subs = append(subs, Subscriber{Email: email, UnsubscribeToken: token})
	}
	return subs, nil
}

// SubscriberAddresses returns every verified subscriber email.
func (s *Service) SubscriberAddresses(ctx context.Context) ([]string, error) {
	encrypted, err := s.store.HashGetAll(ctx, keyUnsubscribeTokensByEmail)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(encrypted))
	for encEmail := range encrypted {
		email, err := s.cipher.Decrypt(encEmail)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, email)
	}
	return addresses, nil
}

// GetUnsubscribeTokens batch-resolves unsubscribe tokens, preserving input
// order. Unknown emails map to "".
func (s *Service) GetUnsubscribeTokens(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	fields := make([]string, len(emails))
	for i, email := range emails {
		fields[i] = s.cipher.Encrypt(email)
	}

	encrypted, err := s.store.HashMultiGet(ctx, keyUnsubscribeTokensByEmail, fields...)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, len(emails))
	for i, enc := range encrypted {
		if enc == "" {
			continue
		}
		token, err := s.cipher.Decrypt(enc)
		if err != nil {
			return nil, err
		}
		tokens[i] = token
	}
	return tokens, nil
}

// QueueEmail appends a job to the tail of the email queue. A job with no
// addresses is broadcast: the current subscriber list is snapshotted at
// enqueue time, not at send time.
func (s *Service) QueueEmail(ctx context.Context, job Job) error {
	if job.Addresses == nil {
		addresses, err := s.SubscriberAddresses(ctx)
		if err != nil {
			return err
		}
		job.Addresses = addresses
	}

	serialized, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("serialize job: %w", err)
	}

	if err := s.store.ListPushTail(ctx, keyEmailQueue, s.cipher.Encrypt(string(serialized))); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// DequeueEmail pops the head of the queue. Returns (nil, nil) when the queue
// is empty. A corrupt entry surfaces as an error: the entry is already popped
// and is not restored, which is logged loudly by the caller; the poll cycle
// carries on.
func (s *Service) DequeueEmail(ctx context.Context) (*Job, error) {
	encrypted, err := s.store.ListPopHead(ctx, keyEmailQueue)
	if err != nil {
		return nil, err
	}
	if encrypted == "" {
		return nil, nil
	}

	serialized, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt queued job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(serialized), &job); err != nil {
		return nil, fmt.Errorf("parse queued job: %w", err)
	}
	return &job, nil
}
