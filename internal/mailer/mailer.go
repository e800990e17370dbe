// Package mailer delivers receipts and stock alerts by e-mail on a worker pool.
package mailer

import (
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/talkincode/toughpos/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrDisabled = errors.New("smtp is not configured")

// Message is a plain-text mail
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message
type Sender interface {
	Send(msg Message) error
}

// SMTPSender sends through the configured SMTP relay
type SMTPSender struct {
	cfg config.SmtpConfig
}

func (s *SMTPSender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Passwd).DialAndSend(m)
}

type Mailer struct {
	sender  Sender
	pool    *ants.Pool
	alertTo string
	wg      sync.WaitGroup
}

// New returns a mailer for cfg. Without an SMTP host the mailer is disabled.
func New(cfg config.SmtpConfig, workers int) (*Mailer, error) {
	if cfg.Host == "" {
		return &Mailer{}, nil
	}
	return NewWithSender(&SMTPSender{cfg: cfg}, cfg.AlertTo, workers)
}

func NewWithSender(sender Sender, alertTo string, workers int) (*Mailer, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		zap.S().Errorf("mail worker panic: %v", p)
	}))
	if err != nil {
		return nil, err
	}
	return &Mailer{sender: sender, pool: pool, alertTo: alertTo}, nil
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.sender != nil
}

// Queue submits msg for background delivery
func (m *Mailer) Queue(msg Message) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	m.wg.Add(1)
	err := m.pool.Submit(func() {
		defer m.wg.Done()
		if err := m.sender.Send(msg); err != nil {
			zap.L().Error("send mail error", zap.String("namespace", "mailer"),
				zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		zap.L().Info("mail sent", zap.String("namespace", "mailer"), zap.String("to", msg.To))
	})
	if err != nil {
		m.wg.Done()
	}
	return err
}

// SendReceipt queues a receipt for to
func (m *Mailer) SendReceipt(to, subject, body string) error {
	return m.Queue(Message{To: to, Subject: subject, Body: body})
}

// Alert queues a message for the configured alert address
func (m *Mailer) Alert(subject, body string) error {
	if m.Enabled() && m.alertTo == "" {
		return nil
	}
	return m.Queue(Message{To: m.alertTo, Subject: subject, Body: body})
}

// Wait blocks until queued messages are handled
func (m *Mailer) Wait() {
	if m.Enabled() {
		m.wg.Wait()
	}
}

// Release waits for queued messages and stops the pool
func (m *Mailer) Release() {
	if !m.Enabled() {
		return
	}
	m.wg.Wait()
	m.pool.Release()
}
