package schema

import (
	"fmt"
	"regexp"
	"strings"

	"vitrina/internal/fieldtype"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации схем
const (
	ErrKindUnknown       = "kind_unknown"
	ErrNameEmpty         = "name_empty"
	ErrNameInvalid       = "name_invalid"
	ErrNameDuplicate     = "name_duplicate"
	ErrOptionsEmpty      = "options_empty"
	ErrChildrenEmpty     = "children_empty"
	ErrChildrenForbidden = "children_forbidden"
	ErrPatternInvalid    = "pattern_invalid"
)

// identRe — допустимые имена типов/полей/инстансов. Нарочно нестрогий:
// пропускает и кастомные имена компонентов, которых нет в базе.
var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// IsIdentifier — подходит ли строка под свободное имя компонента.
func IsIdentifier(s string) bool {
	return identRe.MatchString(strings.TrimSpace(s))
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// ValidateFields рекурсивно проверяет инварианты списка полей:
// имена уникальны среди соседей, kind известен реестру, у select
// непустые options, у array/object непустые children (и только у них).
func ValidateFields(reg *fieldtype.Registry, fields []FieldDefinition) []FieldError {
	return validateFields(reg, fields, "")
}

func validateFields(reg *fieldtype.Registry, fields []FieldDefinition, prefix string) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}

		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, ferr(ErrNameEmpty, path, "field name must not be empty"))
			continue
		}
		if !identRe.MatchString(f.Name) {
			errs = append(errs, ferr(ErrNameInvalid, path, fmt.Sprintf("invalid field name %q", f.Name)))
		}
		low := strings.ToLower(f.Name)
		if seen[low] {
			errs = append(errs, ferr(ErrNameDuplicate, path, fmt.Sprintf("duplicate field %q", f.Name)))
		}
		seen[low] = true

		if !reg.IsValid(f.Kind) {
			errs = append(errs, ferr(ErrKindUnknown, path, fmt.Sprintf("unknown kind %q", f.Kind)))
			continue
		}

		if f.Kind == fieldtype.Select {
			if f.Constraints == nil || len(f.Constraints.Options) == 0 {
				errs = append(errs, ferr(ErrOptionsEmpty, path, "select field requires non-empty options"))
			}
		}

		if f.Constraints != nil && f.Constraints.Pattern != "" {
			if _, err := regexp.Compile(f.Constraints.Pattern); err != nil {
				errs = append(errs, ferr(ErrPatternInvalid, path, "invalid pattern: "+err.Error()))
			}
		}

		if reg.Nested(f.Kind) {
			if len(f.Children) == 0 {
				errs = append(errs, ferr(ErrChildrenEmpty, path,
					fmt.Sprintf("%s field requires non-empty children", f.Kind)))
				continue
			}
			errs = append(errs, validateFields(reg, f.Children, path)...)
		} else if len(f.Children) > 0 {
			errs = append(errs, ferr(ErrChildrenForbidden, path,
				fmt.Sprintf("%s field must not declare children", f.Kind)))
		}
	}
	return errs
}
