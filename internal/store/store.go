// Package store — документное хранилище: коллекции записей с
// произвольным JSON-содержимым, мягким удалением и счётчиком версий.
// Счётчик версий — аудиторский, не используется как optimistic lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Record struct {
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"-"`
	Data      map[string]any `json:"data"`
}

type SortKey struct {
	Field string
	Desc  bool
}

// Query — параметры выборки. Filters — равенство по строковому
// представлению значения, CI — регистронезависимое равенство
// (slug, name, email).
type Query struct {
	Filters        map[string]any
	CI             map[string]string
	Sort           []SortKey
	Limit          int
	Offset         int
	IncludeDeleted bool
}

type Store interface {
	Insert(ctx context.Context, col string, data map[string]any) (*Record, error)
	Get(ctx context.Context, col, id string) (*Record, error)
	// Put заменяет Data целиком; Patch мержит по верхним ключам.
	// Обе инкрементируют версию. Last-write-wins, без блокировок.
	Put(ctx context.Context, col, id string, data map[string]any) (*Record, error)
	Patch(ctx context.Context, col, id string, patch map[string]any) (*Record, error)
	SoftDelete(ctx context.Context, col, id string) error
	Restore(ctx context.Context, col, id string) error
	// List возвращает страницу и общее число записей после фильтрации.
	List(ctx context.Context, col string, q Query) ([]*Record, int, error)
	// FindOne — первая живая запись с регистронезависимым совпадением поля.
	FindOne(ctx context.Context, col, field, value string) (*Record, error)
}

// Flatten — «плоский» вид записи для ответов API: мета-поля рядом
// с пользовательскими. Конфликтующие пользовательские ключи уходят
// под префикс data.
func Flatten(rec *Record) map[string]any {
	out := map[string]any{
		"id":         rec.ID,
		"version":    rec.Version,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.Data {
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// matches — проходит ли запись фильтры запроса.
func (q Query) matches(rec *Record) bool {
	for k, want := range q.Filters {
		if stringify(rec.Data[k]) != stringify(want) {
			return false
		}
	}
	for k, want := range q.CI {
		if !strings.EqualFold(stringify(rec.Data[k]), want) {
			return false
		}
	}
	return true
}

// cmpByKey — сравнение с попыткой числовой интерпретации (поле order
// приходит из JSON как float64, строковое сравнение тут врёт).
func cmpByKey(a, b *Record, key string, desc bool) int {
	va, oka := a.Data[key]
	vb, okb := b.Data[key]

	// nulls — в конец при asc
	na := !oka || va == nil
	nb := !okb || vb == nil
	if na && nb {
		return 0
	}
	if na != nb {
		if na {
			return +1
		}
		return -1
	}

	rel := 0
	fa, aNum := toFloat(va)
	fb, bNum := toFloat(vb)
	if aNum && bNum {
		switch {
		case fa < fb:
			rel = -1
		case fa > fb:
			rel = +1
		}
	} else {
		sa, sb := stringify(va), stringify(vb)
		switch {
		case sa < sb:
			rel = -1
		case sa > sb:
			rel = +1
		}
	}
	if desc {
		rel = -rel
	}
	return rel
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func sortRecords(recs []*Record, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, k := range keys {
			if k.Field == "" {
				continue
			}
			if c := cmpByKey(recs[i], recs[j], k.Field, k.Desc); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// paginate — срез страницы после сортировки.
func paginate(recs []*Record, limit, offset int) []*Record {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(recs) {
		start = len(recs)
	}
	end := len(recs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return recs[start:end]
}
