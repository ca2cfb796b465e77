package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vitrina/internal/fieldtype"
	"vitrina/internal/store"
)

// Collection — коллекция схем компонентов в документном хранилище.
const Collection = "component_types"

// maxChangeLog — потолок журнала правок схемы.
const maxChangeLog = 10

var (
	ErrDuplicateName = errors.New("component type name already exists")
	ErrNotFound      = errors.New("component type not found")
)

// Store — сервис схем компонентов. Имена уникальны без учёта регистра;
// схема никогда не удаляется физически — только IsActive=false.
type Store struct {
	docs store.Store
	reg  *fieldtype.Registry
}

func NewStore(docs store.Store, reg *fieldtype.Registry) *Store {
	return &Store{docs: docs, reg: reg}
}

func (s *Store) Registry() *fieldtype.Registry { return s.reg }

// Define создаёт схему. Возвращает ошибки валидации полей (если есть)
// либо ErrDuplicateName при коллизии имени.
func (s *Store) Define(ctx context.Context, name string, fields []FieldDefinition, tags []string) (*ComponentType, []FieldError, error) {
	name = strings.TrimSpace(name)
	if !IsIdentifier(name) {
		return nil, []FieldError{ferr(ErrNameInvalid, "name", fmt.Sprintf("invalid type name %q", name))}, nil
	}
	if errs := ValidateFields(s.reg, fields); len(errs) > 0 {
		return nil, errs, nil
	}
	if existing, err := s.findDoc(ctx, name); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, ErrDuplicateName
	}

	ct := &ComponentType{
		Name:     name,
		Version:  1,
		Fields:   fields,
		IsActive: true,
		Tags:     tags,
		ChangeLog: []ChangeEntry{
			{Version: 1, ChangedAt: time.Now().UTC(), Note: "created"},
		},
	}
	doc, err := encodeType(ct)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.docs.Insert(ctx, Collection, doc)
	if err != nil {
		return nil, nil, err
	}
	ct.ID = rec.ID
	return ct, nil, nil
}

// Update заменяет список полей, инкрементирует версию и дописывает
// журнал (с вытеснением старых записей за пределами maxChangeLog).
func (s *Store) Update(ctx context.Context, name string, fields []FieldDefinition) (*ComponentType, []FieldError, error) {
	if errs := ValidateFields(s.reg, fields); len(errs) > 0 {
		return nil, errs, nil
	}
	rec, err := s.findDoc(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrNotFound
	}
	ct, err := decodeType(rec)
	if err != nil {
		return nil, nil, err
	}

	ct.Fields = fields
	ct.Version++
	ct.ChangeLog = append(ct.ChangeLog, ChangeEntry{
		Version:   ct.Version,
		ChangedAt: time.Now().UTC(),
		Note:      "fields updated",
	})
	if over := len(ct.ChangeLog) - maxChangeLog; over > 0 {
		ct.ChangeLog = append([]ChangeEntry(nil), ct.ChangeLog[over:]...)
	}

	doc, err := encodeType(ct)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.docs.Put(ctx, Collection, rec.ID, doc); err != nil {
		return nil, nil, err
	}
	return ct, nil, nil
}

// Resolve — регистронезависимый поиск схемы. Промах — (nil, nil),
// не ошибка: кастомные компоненты могут жить без схемы в базе,
// вызывающий сам решает, устраивает ли его nil.
func (s *Store) Resolve(ctx context.Context, name string) (*ComponentType, error) {
	rec, err := s.findDoc(ctx, name)
	if err != nil || rec == nil {
		return nil, err
	}
	return decodeType(rec)
}

// Get — как Resolve, но промах считается ошибкой (админские ручки).
func (s *Store) Get(ctx context.Context, name string) (*ComponentType, error) {
	ct, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, ErrNotFound
	}
	return ct, nil
}

func (s *Store) List(ctx context.Context) ([]*ComponentType, error) {
	recs, _, err := s.docs.List(ctx, Collection, store.Query{
		Sort: []store.SortKey{{Field: "name"}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*ComponentType, 0, len(recs))
	for _, rec := range recs {
		ct, err := decodeType(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// Deactivate выключает схему, не трогая данные инстансов.
func (s *Store) Deactivate(ctx context.Context, name string) error {
	rec, err := s.findDoc(ctx, name)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	_, err = s.docs.Patch(ctx, Collection, rec.ID, map[string]any{"isActive": false})
	return err
}

func (s *Store) findDoc(ctx context.Context, name string) (*store.Record, error) {
	rec, err := s.docs.FindOne(ctx, Collection, "name", strings.TrimSpace(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// encodeType/decodeType — схема живёт в хранилище как обычный документ;
// туда-обратно через JSON, чтобы вложенные children сериализовались
// на любую глубину.
func encodeType(ct *ComponentType) (map[string]any, error) {
	raw, err := json.Marshal(ct)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "id")
	return doc, nil
}

func decodeType(rec *store.Record) (*ComponentType, error) {
	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, err
	}
	var ct ComponentType
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, err
	}
	ct.ID = rec.ID
	return &ct, nil
}
