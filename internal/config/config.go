package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string `json:"port"`
	DBURL         string `json:"dbUrl"` // пусто = in-memory
	FieldTypeSeed string `json:"fieldTypeSeed"`

	// Файлы медиатеки (локальный диск)
	FilesRoot string `json:"filesRoot"`

	// Аутентификация
	JWTSecret string `json:"jwtSecret"`

	// Почта (пустой SMTPAddr = лог вместо отправки)
	SMTPAddr string `json:"smtpAddr"`
	SMTPFrom string `json:"smtpFrom"`
	SMTPUser string `json:"smtpUser"`
	SMTPPass string `json:"smtpPass"`

	// Расписание рассылок (cron, по умолчанию раз в минуту)
	NewsletterCron string `json:"newsletterCron"`
}

func def() Config {
	return Config{
		Port:           "8080",
		DBURL:          "",
		FieldTypeSeed:  "",
		FilesRoot:      "uploads",
		JWTSecret:      "",
		SMTPAddr:       "",
		SMTPFrom:       "noreply@localhost",
		NewsletterCron: "* * * * *",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// LoadWithPath читает .env, затем JSON по указанному пути, потом
// применяет ENV и флаги (в порядке возрастания приоритета).
func LoadWithPath(jsonPath string) Config {
	_ = godotenv.Load()

	cfg := def()
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("VITRINA_PORT", cfg.Port)
	cfg.DBURL = getenv("VITRINA_DB_URL", cfg.DBURL)
	cfg.FieldTypeSeed = getenv("VITRINA_FIELD_TYPE_SEED", cfg.FieldTypeSeed)
	cfg.FilesRoot = getenv("VITRINA_FILES_ROOT", cfg.FilesRoot)
	cfg.JWTSecret = getenv("VITRINA_JWT_SECRET", cfg.JWTSecret)
	cfg.SMTPAddr = getenv("VITRINA_SMTP_ADDR", cfg.SMTPAddr)
	cfg.SMTPFrom = getenv("VITRINA_SMTP_FROM", cfg.SMTPFrom)
	cfg.SMTPUser = getenv("VITRINA_SMTP_USER", cfg.SMTPUser)
	cfg.SMTPPass = getenv("VITRINA_SMTP_PASS", cfg.SMTPPass)
	cfg.NewsletterCron = getenv("VITRINA_NEWSLETTER_CRON", cfg.NewsletterCron)

	// Flags overrides. Свой FlagSet на каждый вызов: перечитывание
	// конфига через -config не должно переопределять глобальные флаги.
	fs := flag.NewFlagSet("vitrina", flag.ContinueOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	port := fs.String("port", cfg.Port, "HTTP port")
	db := fs.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	files := fs.String("files-root", cfg.FilesRoot, "Local files root")
	seed := fs.String("field-types", cfg.FieldTypeSeed, "Field type seed YAML (empty = builtin)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		// незнакомые флаги (напр. -test.*) не роняют загрузку
		return cfg
	}

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.FilesRoot = strings.TrimSpace(*files)
	cfg.FieldTypeSeed = strings.TrimSpace(*seed)
	return cfg
}
