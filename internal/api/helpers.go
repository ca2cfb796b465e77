package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vitrina/internal/content"
	"vitrina/internal/fieldtype"
	"vitrina/internal/mailer"
	"vitrina/internal/schema"
	"vitrina/internal/store"
)

// Имена коллекций документного хранилища
const (
	colPages         = "pages"
	colLayouts       = "layouts"
	colComponents    = "components"
	colBlogs         = "blogs"
	colForms         = "forms"
	colLeads         = "leads"
	colMedia         = "media"
	colNewsletters   = "newsletters"
	colSubscribers   = "subscribers"
	colNotifications = "notifications"
	colUsers         = "users"
)

// Deps — зависимости хендлеров, собираются в main.
type Deps struct {
	Docs      store.Store
	Types     *schema.Store
	Reg       *fieldtype.Registry
	Pipe      *content.Pipeline
	Mail      mailer.Sender
	FilesRoot string
	JWTSecret []byte
	Log       zerolog.Logger
}

// fail — единый формат отказа: {success:false, message, errors?}.
func fail(c *gin.Context, status int, msg string, errs ...schema.FieldError) {
	body := gin.H{"success": false, "message": msg}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	c.JSON(status, body)
}

func failNotFound(c *gin.Context, what string) {
	fail(c, http.StatusNotFound, what+" not found")
}

func ferr(code, field, msg string) schema.FieldError {
	return schema.FieldError{Code: code, Field: field, Message: msg}
}

// Коды ошибок уровня API (дополняют schema.Err*)
const (
	errRequired      = "required"
	errDuplicateName = "duplicate_name"
	errNotFound      = "not_found"
	errInvalidJSON   = "invalid_json"
)

// parseListParams — limit/offset/sort из query
// (sort=-order,name; limit<=1000).
func parseListParams(q url.Values) store.Query {
	out := store.Query{Limit: 50}

	if lv := firstOf(q, "_limit", "limit"); lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			out.Limit = n
		}
	}
	if ov := firstOf(q, "_offset", "offset"); ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			out.Offset = n
		}
	}
	if sv := firstOf(q, "_sort", "sort"); sv != "" {
		for _, p := range strings.Split(sv, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			desc := strings.HasPrefix(p, "-")
			p = strings.TrimPrefix(strings.TrimPrefix(p, "-"), "+")
			if p != "" {
				out.Sort = append(out.Sort, store.SortKey{Field: p, Desc: desc})
			}
		}
	}
	return out
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// flatRecords — страница записей в плоском виде + X-Total-Count.
func flatRecords(c *gin.Context, recs []*store.Record, total int) {
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, store.Flatten(rec))
	}
	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, out)
}

func docString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func docBool(data map[string]any, key string, def bool) bool {
	if b, ok := data[key].(bool); ok {
		return b
	}
	return def
}

func docFloat(data map[string]any, key string) float64 {
	switch t := data[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}
