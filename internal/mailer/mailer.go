// Package mailer — исходящая почта. Доставка за интерфейсом Sender:
// в проде SMTP, в тестах и dev-режиме лог.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

type Sender interface {
	Send(to []string, subject, body string) error
}

// SMTPSender — net/smtp с опциональным PLAIN auth.
type SMTPSender struct {
	Addr string // host:port
	From string
	User string
	Pass string
}

func (s *SMTPSender) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	var auth smtp.Auth
	if s.User != "" {
		host := s.Addr
		if i := strings.IndexByte(host, ':'); i > 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.User, s.Pass, host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		s.From, strings.Join(to, ", "), subject, body)
	return smtp.SendMail(s.Addr, auth, s.From, to, []byte(msg))
}

// LogSender пишет письма в лог вместо отправки.
type LogSender struct {
	Log zerolog.Logger
}

func (s *LogSender) Send(to []string, subject, body string) error {
	s.Log.Info().Strs("to", to).Str("subject", subject).Int("bytes", len(body)).
		Msg("mail suppressed (log sender)")
	return nil
}
