package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"vitrina/internal/schema"
	"vitrina/internal/store"
)

type formPayload struct {
	Name         string                   `json:"name"`
	Title        string                   `json:"title"`
	Fields       []schema.FieldDefinition `json:"fields"`
	NotifyEmails []string                 `json:"notifyEmails"`
	SuccessText  string                   `json:"successText"`
}

// POST /api/admin/forms — поля формы описываются той же схемой,
// что и поля компонентов.
func FormCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body formPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr(errRequired, "name", "name is required"))
			return
		}
		if ferrs := schema.ValidateFields(d.Reg, body.Fields); len(ferrs) > 0 {
			fail(c, http.StatusBadRequest, "Validation failed", ferrs...)
			return
		}
		if _, err := d.Docs.FindOne(c.Request.Context(), colForms, "name", name); err == nil {
			fail(c, http.StatusConflict, "Form name already exists",
				ferr(errDuplicateName, "name", "name must be unique"))
			return
		}
		rec, err := d.Docs.Insert(c.Request.Context(), colForms, map[string]any{
			"name":         name,
			"title":        body.Title,
			"fields":       fieldsToDoc(body.Fields),
			"notifyEmails": body.NotifyEmails,
			"successText":  body.SuccessText,
			"isActive":     true,
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/admin/forms
func FormListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, total, err := d.Docs.List(c.Request.Context(), colForms, parseListParams(c.Request.URL.Query()))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/admin/forms/:id
func FormGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colForms, c.Param("id"))
		if err != nil {
			failNotFound(c, "Form")
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// PATCH /api/admin/forms/:id
func FormUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body formPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		patch := map[string]any{}
		if name := strings.TrimSpace(body.Name); name != "" {
			patch["name"] = name
		}
		if body.Title != "" {
			patch["title"] = body.Title
		}
		if body.Fields != nil {
			if ferrs := schema.ValidateFields(d.Reg, body.Fields); len(ferrs) > 0 {
				fail(c, http.StatusBadRequest, "Validation failed", ferrs...)
				return
			}
			patch["fields"] = fieldsToDoc(body.Fields)
		}
		if body.NotifyEmails != nil {
			patch["notifyEmails"] = body.NotifyEmails
		}
		if body.SuccessText != "" {
			patch["successText"] = body.SuccessText
		}
		rec, err := d.Docs.Patch(c.Request.Context(), colForms, c.Param("id"), patch)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Form")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// DELETE /api/admin/forms/:id
func FormDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colForms, c.Param("id")); err != nil {
			failNotFound(c, "Form")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/forms/:id/submit — публичная отправка формы. Валидирует
// сабмит по схеме полей формы, создаёт lead, уведомления админам и
// письмо на notifyEmails. Неизвестные ключи сабмита сохраняются как
// есть — отправку не отклоняем.
func FormSubmitHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		form, err := d.Docs.Get(ctx, colForms, c.Param("id"))
		if err != nil || !docBool(form.Data, "isActive", true) {
			failNotFound(c, "Form")
			return
		}
		var submission map[string]any
		if err := c.ShouldBindJSON(&submission); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}

		fields := fieldsFromDoc(form.Data["fields"])
		var ferrs []schema.FieldError
		for _, f := range fields {
			v, ok := submission[f.Name]
			if f.Required && (!ok || v == nil || v == "") {
				ferrs = append(ferrs, ferr(errRequired, f.Name, f.Name+" is required"))
			}
		}
		if len(ferrs) > 0 {
			fail(c, http.StatusBadRequest, "Validation failed", ferrs...)
			return
		}
		for k := range submission {
			if fieldByName(fields, k) == nil {
				d.Log.Warn().Str("form", form.ID).Str("key", k).
					Msg("submission key not present in form schema, keeping as-is")
			}
		}

		lead, err := d.Docs.Insert(ctx, colLeads, map[string]any{
			"formRef":  form.ID,
			"formName": docString(form.Data, "name"),
			"data":     submission,
			"status":   "new",
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		d.notifyLead(ctx, form, lead)

		success := docString(form.Data, "successText")
		if success == "" {
			success = "Thank you!"
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": success, "id": lead.ID})
	}
}

// notifyLead — уведомления админам и почта на notifyEmails.
// Best-effort: сбой уведомления не роняет сабмит, только лог.
func (d *Deps) notifyLead(ctx context.Context, form, lead *store.Record) {
	formName := docString(form.Data, "name")

	admins, _, err := d.Docs.List(ctx, colUsers, store.Query{
		Filters: map[string]any{"role": "admin"},
	})
	if err != nil {
		d.Log.Error().Err(err).Msg("lead notification: admin lookup failed")
	}
	for _, admin := range admins {
		_, err := d.Docs.Insert(ctx, colNotifications, map[string]any{
			"userRef": admin.ID,
			"kind":    "lead",
			"text":    fmt.Sprintf("New submission for form %q", formName),
			"leadRef": lead.ID,
			"read":    false,
		})
		if err != nil {
			d.Log.Error().Err(err).Str("user", admin.ID).Msg("lead notification failed")
		}
	}

	emails := stringSlice(form.Data["notifyEmails"])
	if len(emails) == 0 {
		return
	}
	subject := fmt.Sprintf("[vitrina] New lead: %s", formName)
	if err := d.Mail.Send(emails, subject, leadMailBody(lead)); err != nil {
		d.Log.Error().Err(err).Str("lead", lead.ID).Msg("lead mail failed")
	}
}

func leadMailBody(lead *store.Record) string {
	data, _ := lead.Data["data"].(map[string]any)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "Lead %s\n\n", lead.ID)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, data[k])
	}
	return b.String()
}

func stringSlice(raw any) []string {
	switch t := raw.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GET /api/admin/leads
func LeadListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "created_at", Desc: true}}
		}
		if f := c.Query("formRef"); f != "" {
			q.Filters = map[string]any{"formRef": f}
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colLeads, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/admin/leads/:id
func LeadGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colLeads, c.Param("id"))
		if err != nil {
			failNotFound(c, "Lead")
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// PATCH /api/admin/leads/:id — смена статуса (new|seen|done).
func LeadUpdateHandler(d *Deps) gin.HandlerFunc {
	var leadStatuses = map[string]bool{"new": true, "seen": true, "done": true}
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || !leadStatuses[body.Status] {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("status_invalid", "status", "status must be new|seen|done"))
			return
		}
		rec, err := d.Docs.Patch(c.Request.Context(), colLeads, c.Param("id"), map[string]any{"status": body.Status})
		if err != nil {
			failNotFound(c, "Lead")
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// DELETE /api/admin/leads/:id
func LeadDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colLeads, c.Param("id")); err != nil {
			failNotFound(c, "Lead")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// fieldsToDoc / fieldsFromDoc — туда-обратно через JSON, чтобы документ
// в хранилище оставался JSON-деревом без потерь (constraints, дефолты,
// children на любую глубину).
func fieldsToDoc(fields []schema.FieldDefinition) []any {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func fieldsFromDoc(raw any) []schema.FieldDefinition {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []schema.FieldDefinition
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func fieldByName(fields []schema.FieldDefinition, name string) *schema.FieldDefinition {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}
