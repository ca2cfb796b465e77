package schema

import (
	"time"

	"vitrina/internal/fieldtype"
)

// FieldDefinition — описание одного поля в схеме компонента.
// Children заполняется только для array (форма элемента) и object
// (фиксированная вложенная форма); произвольная глубина вложенности.
type FieldDefinition struct {
	Name        string            `json:"name"`
	Kind        fieldtype.Kind    `json:"kind"`
	Required    bool              `json:"required,omitempty"`
	Default     any               `json:"defaultValue,omitempty"`
	Constraints *Constraints      `json:"constraints,omitempty"`
	Children    []FieldDefinition `json:"children,omitempty"`
}

type Constraints struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Options []Option `json:"options,omitempty"` // обязательны для select
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChangeEntry — запись журнала структурных правок схемы.
// Журнал ограничен maxChangeLog записями, старые вытесняются.
type ChangeEntry struct {
	Version   int       `json:"version"`
	ChangedAt time.Time `json:"changedAt"`
	Note      string    `json:"note,omitempty"`
}

// ComponentType — именованная версионируемая схема компонента.
// Имя уникально без учёта регистра. Никогда не удаляется физически,
// только деактивируется.
type ComponentType struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Version   int               `json:"version"`
	Fields    []FieldDefinition `json:"fields"`
	IsActive  bool              `json:"isActive"`
	Tags      []string          `json:"tags,omitempty"`
	ChangeLog []ChangeEntry     `json:"changeLog,omitempty"`
}

// Field ищет определение поля по имени на верхнем уровне схемы.
func (t *ComponentType) Field(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}
