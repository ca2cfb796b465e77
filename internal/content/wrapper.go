// Package content — преобразования значений компонентов между тремя
// представлениями: хранимые value-обёртки, редакторская форма
// (значение + тип + itemStructure) и публичная плоская форма.
package content

import (
	"fmt"

	"vitrina/internal/fieldtype"
	"vitrina/internal/schema"
)

// Ключи wire-формата обёртки. type и fieldType дублируют друг друга —
// так исторически лежат документы, совместимость сохраняем. Внутри
// кода дискриминант один (kind), оба ключа пишутся из него.
const (
	keyType      = "type"
	keyFieldType = "fieldType"
	keyValue     = "value"
	keyItems     = "itemStructure"
)

// Wrap собирает wire-обёртку скалярного значения.
func Wrap(kind fieldtype.Kind, value any) map[string]any {
	return map[string]any{
		keyType:      string(kind),
		keyFieldType: string(kind),
		keyValue:     value,
	}
}

// WrapArray — обёртка массива: значения + форма элемента. Обёртка
// самоописываемая, потребителю не нужно ходить за схемой.
func WrapArray(items []any, shape []schema.FieldDefinition) map[string]any {
	w := Wrap(fieldtype.Array, items)
	w[keyItems] = shape
	return w
}

// AsWrapper распознаёт value-обёртку: map с ключом value и хотя бы
// одним из type/fieldType.
func AsWrapper(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, has := m[keyValue]; !has {
		return nil, false
	}
	_, hasType := m[keyType]
	_, hasFT := m[keyFieldType]
	if !hasType && !hasFT {
		return nil, false
	}
	return m, true
}

// WrapperKind — kind обёртки; type приоритетнее fieldType.
func WrapperKind(w map[string]any) fieldtype.Kind {
	if s, ok := w[keyType].(string); ok && s != "" {
		return fieldtype.Kind(s)
	}
	if s, ok := w[keyFieldType].(string); ok && s != "" {
		return fieldtype.Kind(s)
	}
	return ""
}

// Bare снимает обёртку (одну, без рекурсии); не-обёртки отдаёт как есть.
func Bare(v any) any {
	if w, ok := AsWrapper(v); ok {
		return w[keyValue]
	}
	return v
}

// asSlice приводит значение массивного поля к настоящему списку.
// nil, отсутствие и мусор дают пустой список — массив никогда
// не хранится как null.
func asSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		if t == nil {
			return []any{}
		}
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	default:
		return []any{}
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
