// Package scheduler — фоновая отправка запланированных рассылок.
// Крон дёргает Dispatch, который рассылает все созревшие newsletters
// подписчикам и помечает их отправленными.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"vitrina/internal/mailer"
	"vitrina/internal/store"
)

const (
	colNewsletters = "newsletters"
	colSubscribers = "subscribers"
)

type Scheduler struct {
	docs store.Store
	mail mailer.Sender
	log  zerolog.Logger
	cron *cron.Cron
}

func New(docs store.Store, mail mailer.Sender, log zerolog.Logger) *Scheduler {
	return &Scheduler{docs: docs, mail: mail, log: log}
}

// Start запускает крон по выражению robfig/cron, напр. "* * * * *".
func (s *Scheduler) Start(expr string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Dispatch(ctx, time.Now().UTC()); err != nil {
			s.log.Error().Err(err).Msg("newsletter dispatch failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Dispatch отправляет все рассылки со scheduledAt <= now. Сбой одной
// рассылки не мешает остальным; отправленная помечается status=sent,
// чтобы следующий тик её не взял повторно.
func (s *Scheduler) Dispatch(ctx context.Context, now time.Time) error {
	due, _, err := s.docs.List(ctx, colNewsletters, store.Query{
		Filters: map[string]any{"status": "scheduled"},
	})
	if err != nil {
		return err
	}

	var recipients []string
	for _, n := range due {
		at, err := time.Parse(time.RFC3339, str(n.Data, "scheduledAt"))
		if err != nil || at.After(now) {
			continue
		}
		if recipients == nil {
			recipients, err = s.subscriberEmails(ctx)
			if err != nil {
				return err
			}
		}
		if len(recipients) > 0 {
			if err := s.mail.Send(recipients, str(n.Data, "subject"), str(n.Data, "body")); err != nil {
				s.log.Error().Err(err).Str("newsletter", n.ID).Msg("newsletter send failed")
				continue
			}
		}
		_, err = s.docs.Patch(ctx, colNewsletters, n.ID, map[string]any{
			"status": "sent",
			"sentAt": now.Format(time.RFC3339),
		})
		if err != nil {
			s.log.Error().Err(err).Str("newsletter", n.ID).Msg("newsletter mark-sent failed")
			continue
		}
		s.log.Info().Str("newsletter", n.ID).Int("recipients", len(recipients)).
			Msg("newsletter sent")
	}
	return nil
}

func (s *Scheduler) subscriberEmails(ctx context.Context) ([]string, error) {
	subs, _, err := s.docs.List(ctx, colSubscribers, store.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		if e := str(sub.Data, "email"); e != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
