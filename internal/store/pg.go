package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/oklog/ulid/v2"
)

// Postgres — документное хранилище поверх одной таблицы documents
// (collection + id → jsonb). Фильтрация/сортировка страниц выполняется
// в Go теми же хелперами, что и у Memory — поведение двух реализаций
// обязано совпадать.
type Postgres struct {
	db      *sql.DB
	entropy io.Reader
}

const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
    collection  text        NOT NULL,
    id          text        NOT NULL,
    version     bigint      NOT NULL DEFAULT 1,
    created_at  timestamptz NOT NULL,
    updated_at  timestamptz NOT NULL,
    deleted     boolean     NOT NULL DEFAULT false,
    data        jsonb       NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection) WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING gin (data);
`

// Open подключается к Postgres и накатывает idempotent DDL.
func Open(url string) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyDDL(db, documentsDDL); err != nil {
		_ = db.Close()
		return nil, err
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Postgres{db: db, entropy: ulid.Monotonic(src, 0)}, nil
}

func applyDDL(db *sql.DB, ddl string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// duplicate_object (42710) — объект уже есть, идём дальше
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				continue
			}
			return fmt.Errorf("DDL apply failed: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

func (p *Postgres) Insert(ctx context.Context, col string, data map[string]any) (*Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &Record{ID: p.newID(), Version: 1, CreatedAt: now, UpdatedAt: now, Data: data}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, version, created_at, updated_at, deleted, data)
		 VALUES ($1, $2, 1, $3, $3, false, $4)`,
		col, rec.ID, now, raw)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Postgres) Get(ctx context.Context, col, id string) (*Record, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, version, created_at, updated_at, deleted, data
		 FROM documents WHERE collection = $1 AND id = $2 AND NOT deleted`,
		col, id)
	return scanRecord(row)
}

func (p *Postgres) Put(ctx context.Context, col, id string, data map[string]any) (*Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	row := p.db.QueryRowContext(ctx,
		`UPDATE documents SET data = $4, version = version + 1, updated_at = $3
		 WHERE collection = $1 AND id = $2 AND NOT deleted
		 RETURNING id, version, created_at, updated_at, deleted, data`,
		col, id, now, raw)
	return scanRecord(row)
}

func (p *Postgres) Patch(ctx context.Context, col, id string, patch map[string]any) (*Record, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	// jsonb || — неглубокий merge по верхним ключам, как у Memory.Patch
	row := p.db.QueryRowContext(ctx,
		`UPDATE documents SET data = data || $4::jsonb, version = version + 1, updated_at = $3
		 WHERE collection = $1 AND id = $2 AND NOT deleted
		 RETURNING id, version, created_at, updated_at, deleted, data`,
		col, id, now, raw)
	return scanRecord(row)
}

func (p *Postgres) SoftDelete(ctx context.Context, col, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE documents SET deleted = true, version = version + 1, updated_at = $3
		 WHERE collection = $1 AND id = $2 AND NOT deleted`,
		col, id, time.Now().UTC())
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (p *Postgres) Restore(ctx context.Context, col, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE documents SET deleted = false, version = version + 1, updated_at = $3
		 WHERE collection = $1 AND id = $2 AND deleted`,
		col, id, time.Now().UTC())
	if err != nil {
		return err
	}
	// повторный restore живой записи — не ошибка
	if err := affectedOrNotFound(res); err != nil {
		if _, gerr := p.Get(ctx, col, id); gerr == nil {
			return nil
		}
		return err
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, col string, q Query) ([]*Record, int, error) {
	where := `collection = $1`
	if !q.IncludeDeleted {
		where += ` AND NOT deleted`
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, version, created_at, updated_at, deleted, data FROM documents WHERE `+where,
		col)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var all []*Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, 0, err
		}
		if q.matches(rec) {
			all = append(all, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	sortRecords(all, q.Sort)
	total := len(all)
	return paginate(all, q.Limit, q.Offset), total, nil
}

func (p *Postgres) FindOne(ctx context.Context, col, field, value string) (*Record, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, version, created_at, updated_at, deleted, data
		 FROM documents
		 WHERE collection = $1 AND NOT deleted AND lower(data->>$2) = lower($3)
		 LIMIT 1`,
		col, field, value)
	return scanRecord(row)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec, err := scanRecordRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanRecordRows(row scannable) (*Record, error) {
	var rec Record
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.Deleted, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, err
	}
	return &rec, nil
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
