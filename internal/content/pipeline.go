package content

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"vitrina/internal/fieldtype"
	"vitrina/internal/schema"
)

// Pipeline нормализует данные компонентов на пути записи. Ключи,
// которых нет в схеме, сохраняются как есть (схема и данные могут
// разъезжаться, ломать контент из-за этого нельзя) — расхождение
// только логируется.
type Pipeline struct {
	log  zerolog.Logger
	rich *bluemonday.Policy
}

func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{log: log, rich: bluemonday.UGCPolicy()}
}

// Normalize перетегирует каждое поле его типом из схемы перед записью.
// image всегда остаётся обёрткой, даже с пустым value (пустая ссылка
// на картинку — не то же, что отсутствующее поле); массивы всегда
// приводятся к настоящему списку; richText санируется.
// fields == nil — кастомный компонент без схемы, payload не трогаем.
func (p *Pipeline) Normalize(component string, data map[string]any, fields []schema.FieldDefinition) map[string]any {
	if fields == nil {
		return data
	}
	out := make(map[string]any, len(data))
	known := make(map[string]bool, len(fields))

	for _, f := range fields {
		known[f.Name] = true
		in, present := data[f.Name]

		switch f.Kind {
		case fieldtype.Image:
			out[f.Name] = Wrap(fieldtype.Image, asString(Bare(in)))
		case fieldtype.Array:
			items := asSlice(Bare(in))
			norm := make([]any, 0, len(items))
			for _, it := range items {
				norm = append(norm, p.Normalize(component, asMap(it), f.Children))
			}
			out[f.Name] = WrapArray(norm, f.Children)
		case fieldtype.Object:
			if !present {
				continue
			}
			out[f.Name] = Wrap(fieldtype.Object, p.Normalize(component, asMap(Bare(in)), f.Children))
		case fieldtype.RichText:
			if !present {
				continue
			}
			out[f.Name] = Wrap(fieldtype.RichText, p.rich.Sanitize(asString(Bare(in))))
		default:
			if !present {
				continue
			}
			out[f.Name] = Wrap(f.Kind, Bare(in))
		}
	}

	for k, v := range data {
		if known[k] {
			continue
		}
		// ключ вне схемы — сохраняем дословно, не отбрасываем
		p.log.Warn().Str("component", component).Str("field", k).
			Msg("data key not present in schema, keeping as-is")
		out[k] = v
	}
	return out
}

// Enrich — редакторская форма: каждое поле схемы превращается в
// {type, fieldType, value}, у массивов добавляется itemStructure —
// всегда из ТЕКУЩЕЙ схемы, а не из сохранённого документа, поэтому
// правки схемы видны старым инстансам без миграции данных.
// Отсутствующее значение подменяется defaultValue ?? "".
func Enrich(data map[string]any, fields []schema.FieldDefinition) map[string]any {
	out := make(map[string]any, len(fields))
	known := make(map[string]bool, len(fields))

	for _, f := range fields {
		known[f.Name] = true
		stored, present := data[f.Name]

		switch f.Kind {
		case fieldtype.Array:
			items := asSlice(Bare(stored))
			enriched := make([]any, 0, len(items))
			for _, it := range items {
				enriched = append(enriched, Enrich(asMap(it), f.Children))
			}
			out[f.Name] = WrapArray(enriched, f.Children)
		case fieldtype.Object:
			out[f.Name] = Wrap(fieldtype.Object, Enrich(asMap(Bare(stored)), f.Children))
		default:
			var value any
			if present {
				value = Bare(stored)
			} else {
				value = f.Default
				if value == nil {
					value = ""
				}
			}
			out[f.Name] = Wrap(f.Kind, value)
		}
	}

	// дрейф схемы: лишние ключи отдаём редактору нетронутыми
	for k, v := range data {
		if !known[k] {
			out[k] = v
		}
	}
	return out
}

// Flatten — публичная форма: рекурсивно снимает обёртки до голых
// значений. flatten(enrich(x)) воспроизводит flatten(x) с точностью
// до дефолтов отсутствующих полей.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	if w, ok := AsWrapper(v); ok {
		switch WrapperKind(w) {
		case fieldtype.Array:
			items := asSlice(w[keyValue])
			out := make([]any, 0, len(items))
			for _, it := range items {
				if m, ok := it.(map[string]any); ok {
					out = append(out, Flatten(m))
				} else {
					out = append(out, flattenValue(it))
				}
			}
			return out
		case fieldtype.Object:
			return Flatten(asMap(w[keyValue]))
		default:
			// значение может само оказаться обёрткой (дрейф) — дожимаем
			return flattenValue(w[keyValue])
		}
	}
	switch t := v.(type) {
	case map[string]any:
		return Flatten(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, it := range t {
			out = append(out, flattenValue(it))
		}
		return out
	default:
		return v
	}
}
