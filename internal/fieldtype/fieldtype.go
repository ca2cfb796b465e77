package fieldtype

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind — тип поля компонента. Закрытый набор, см. DefaultKinds.
type Kind string

const (
	Text     Kind = "text"
	Textarea Kind = "textarea"
	RichText Kind = "richText"
	Number   Kind = "number"
	Image    Kind = "image"
	Boolean  Kind = "boolean"
	Date     Kind = "date"
	Select   Kind = "select"
	Array    Kind = "array"
	Object   Kind = "object"
)

// KindInfo — метаданные типа для админки (лейбл, вложенность).
type KindInfo struct {
	Kind     Kind   `yaml:"kind" json:"kind"`
	Label    string `yaml:"label" json:"label"`
	Nested   bool   `yaml:"nested" json:"nested"`     // array/object — содержат children
	HasValue bool   `yaml:"hasValue" json:"hasValue"` // false только для object/array
}

// Registry — каталог допустимых типов полей. Неизменяемый после загрузки,
// передаётся сервисам явно (не синглтон).
type Registry struct {
	kinds map[Kind]KindInfo
}

// DefaultKinds — встроенный набор, используется если seed-файл не задан.
func DefaultKinds() []KindInfo {
	return []KindInfo{
		{Kind: Text, Label: "Text", HasValue: true},
		{Kind: Textarea, Label: "Text area", HasValue: true},
		{Kind: RichText, Label: "Rich text", HasValue: true},
		{Kind: Number, Label: "Number", HasValue: true},
		{Kind: Image, Label: "Image", HasValue: true},
		{Kind: Boolean, Label: "Boolean", HasValue: true},
		{Kind: Date, Label: "Date", HasValue: true},
		{Kind: Select, Label: "Select", HasValue: true},
		{Kind: Array, Label: "Array", Nested: true},
		{Kind: Object, Label: "Object", Nested: true},
	}
}

func New(kinds []KindInfo) *Registry {
	r := &Registry{kinds: make(map[Kind]KindInfo, len(kinds))}
	for _, k := range kinds {
		r.kinds[k.Kind] = k
	}
	return r
}

// NewDefault — реестр со встроенным набором типов.
func NewDefault() *Registry {
	return New(DefaultKinds())
}

type seedFile struct {
	Kinds []KindInfo `yaml:"kinds"`
}

// LoadSeed читает YAML-каталог типов. Пустой путь — встроенный набор.
// Seed может только переопределять лейблы и сужать набор, новые kind'ы
// не принимаются: набор закрыт.
func LoadSeed(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewDefault(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Kinds) == 0 {
		return NewDefault(), nil
	}
	builtin := New(DefaultKinds())
	out := make([]KindInfo, 0, len(f.Kinds))
	for _, k := range f.Kinds {
		base, ok := builtin.kinds[k.Kind]
		if !ok {
			return nil, fmt.Errorf("%s: unknown kind %q", path, k.Kind)
		}
		if k.Label == "" {
			k.Label = base.Label
		}
		// структурные флаги не переопределяются
		k.Nested = base.Nested
		k.HasValue = base.HasValue
		out = append(out, k)
	}
	return New(out), nil
}

// IsValid — известен ли тип. Неизвестный kind отвергается всеми
// потребителями без fallback'а.
func (r *Registry) IsValid(k Kind) bool {
	_, ok := r.kinds[k]
	return ok
}

// Nested — допускает ли тип вложенные children (array/object).
func (r *Registry) Nested(k Kind) bool {
	info, ok := r.kinds[k]
	return ok && info.Nested
}

// Kinds — отсортированный список для /field-types.
func (r *Registry) Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
