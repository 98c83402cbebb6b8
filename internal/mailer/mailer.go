package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	subjectPrefix     = "[Chatbot Escalation]"
	referenceIDLength = 8
)

// ErrInvalidMessage reports a message that cannot be composed.
var ErrInvalidMessage = errors.New("invalid escalation message")

// Message is an escalation to deliver.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Receipt describes a dispatch attempt. ReferenceID is always set.
type Receipt struct {
	ReferenceID string
	Subject     string
	Sent        bool
}

// Sender composes and dispatches escalation email.
type Sender struct {
	transport Transport
	from      string
	logger    *zap.Logger
	newID     func() string
}

// Option configures a Sender.
type Option func(*Sender)

// WithReferenceIDs overrides reference ID generation, primarily for tests.
func WithReferenceIDs(gen func() string) Option {
	return func(s *Sender) {
		s.newID = gen
	}
}

// New creates a Sender that sends from the given address.
func New(transport Transport, from string, logger *zap.Logger, opts ...Option) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		transport: transport,
		from:      from,
		logger:    logger,
		newID:     NewReferenceID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewReferenceID returns the first eight characters of a random UUID.
func NewReferenceID() string {
	return uuid.NewString()[:referenceIDLength]
}

// FormatSubject tags subject with the escalation prefix and reference ID.
func FormatSubject(subject, referenceID string) string {
	return fmt.Sprintf("%s %s (Ref: %s)", subjectPrefix, subject, referenceID)
}

// Send delivers msg. The returned receipt carries a reference ID even when
// err is non-nil so the caller can still hand it to the requester.
func (s *Sender) Send(ctx context.Context, msg Message) (Receipt, error) {
	receipt := Receipt{ReferenceID: s.newID()}
	receipt.Subject = FormatSubject(strings.TrimSpace(msg.Subject), receipt.ReferenceID)

	composed, err := s.compose(msg, receipt.Subject)
	if err != nil {
		s.logger.Warn("escalation rejected",
			zap.String("reference_id", receipt.ReferenceID),
			zap.Error(err),
		)
		return receipt, err
	}

	if err := s.transport.Send(ctx, composed); err != nil {
		s.logger.Error("escalation email failed",
			zap.String("reference_id", receipt.ReferenceID),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return receipt, fmt.Errorf("send escalation %s: %w", receipt.ReferenceID, err)
	}

	receipt.Sent = true
	s.logger.Info("escalation email sent",
		zap.String("reference_id", receipt.ReferenceID),
		zap.String("to", msg.To),
	)
	return receipt, nil
}

func (s *Sender) compose(msg Message, subject string) (*mail.Msg, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}

	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", ErrInvalidMessage, s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, msg.To, err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
