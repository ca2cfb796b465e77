package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"time"

	"github.com/rs/zerolog"

	"vitrina/internal/api"
	"vitrina/internal/config"
	"vitrina/internal/content"
	"vitrina/internal/fieldtype"
	"vitrina/internal/mailer"
	"vitrina/internal/scheduler"
	"vitrina/internal/schema"
	"vitrina/internal/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.LoadWithPath("config.json")

	var docs store.Store
	if cfg.DBURL != "" {
		pg, err := store.Open(cfg.DBURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pg.Close()
		docs = pg
		log.Info().Msg("using postgres store")
	} else {
		docs = store.NewMemory()
		log.Warn().Msg("no dbUrl configured, using in-memory store")
	}

	reg, err := fieldtype.LoadSeed(cfg.FieldTypeSeed)
	if err != nil {
		log.Fatal().Err(err).Str("seed", cfg.FieldTypeSeed).Msg("field type seed failed")
	}

	types := schema.NewStore(docs, reg)
	pipe := content.NewPipeline(log)

	var mail mailer.Sender
	if cfg.SMTPAddr != "" {
		mail = &mailer.SMTPSender{
			Addr: cfg.SMTPAddr,
			From: cfg.SMTPFrom,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
		}
	} else {
		mail = &mailer.LogSender{Log: log}
		log.Warn().Msg("no smtpAddr configured, mail goes to log")
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// эфемерный секрет: токены не переживут рестарт
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatal().Err(err).Msg("jwt secret generation failed")
		}
		secret = hex.EncodeToString(buf)
		log.Warn().Msg("no jwtSecret configured, using ephemeral secret")
	}

	d := &api.Deps{
		Docs:      docs,
		Types:     types,
		Reg:       reg,
		Pipe:      pipe,
		Mail:      mail,
		FilesRoot: cfg.FilesRoot,
		JWTSecret: []byte(secret),
		Log:       log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := api.EnsureAdmin(ctx, docs, log); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("admin seed failed")
	}
	cancel()

	sched := scheduler.New(docs, mail, log)
	if err := sched.Start(cfg.NewsletterCron); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.NewsletterCron).Msg("scheduler start failed")
	}
	defer sched.Stop()

	r := api.NewRouter(d)
	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
