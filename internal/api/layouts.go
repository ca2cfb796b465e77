package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"vitrina/internal/schema"
	"vitrina/internal/store"
)

type layoutPayload struct {
	Name    string `json:"name"`
	PageRef string `json:"pageRef"`
}

// POST /api/admin/layouts
func LayoutCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body layoutPayload
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
		if _, err := d.Docs.FindOne(c.Request.Context(), colLayouts, "name", name); err == nil {
			fail(c, http.StatusConflict, "Layout name already exists",
				ferr(errDuplicateName, "name", "name must be unique"))
			return
		}
		rec, err := d.Docs.Insert(c.Request.Context(), colLayouts, map[string]any{
			"name":     name,
			"pageRef":  body.PageRef,
			"isActive": true,
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/admin/layouts
func LayoutListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, total, err := d.Docs.List(c.Request.Context(), colLayouts, parseListParams(c.Request.URL.Query()))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/admin/layouts/:id — layout вместе с его компонентами
// в порядке order.
func LayoutGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colLayouts, c.Param("id"))
		if err != nil {
			failNotFound(c, "Layout")
			return
		}
		comps, err := layoutComponents(c.Request.Context(), d, rec.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		out := store.Flatten(rec)
		items := make([]map[string]any, 0, len(comps))
		for _, comp := range comps {
			items = append(items, store.Flatten(comp))
		}
		out["components"] = items
		c.JSON(http.StatusOK, out)
	}
}

// incomingComponent — элемент bulk-сохранения лейаута. _id принимается
// наравне с id ради совместимости со старыми клиентами.
type incomingComponent struct {
	LegacyID string         `json:"_id"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Order    float64        `json:"order"`
	Data     map[string]any `json:"data"`
}

func (ic incomingComponent) id() string {
	if ic.ID != "" {
		return ic.ID
	}
	return ic.LegacyID
}

type saveResult struct {
	ID     string              `json:"id,omitempty"`
	Name   string              `json:"name,omitempty"`
	Errors []schema.FieldError `json:"errors,omitempty"`
}

// PUT /api/admin/layouts/:id — bulk-сохранение компонентов лейаута.
// Каждый компонент пишется независимой горутиной (fan-out/fan-in),
// БЕЗ общей транзакции: частичный сбой оставляет успевшие записи как
// есть, результат отдаётся по-элементно (settle all, report all).
func LayoutSaveHandler(d *Deps) gin.HandlerFunc {
	type req struct {
		Name       string              `json:"name"`
		Components []incomingComponent `json:"components"`
	}
	return func(c *gin.Context) {
		layoutID := c.Param("id")
		layout, err := d.Docs.Get(c.Request.Context(), colLayouts, layoutID)
		if err != nil {
			failNotFound(c, "Layout")
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if name := strings.TrimSpace(body.Name); name != "" && name != docString(layout.Data, "name") {
			renamed, err := d.Docs.Patch(c.Request.Context(), colLayouts, layoutID, map[string]any{"name": name})
			if err != nil {
				fail(c, http.StatusInternalServerError, err.Error())
				return
			}
			layout = renamed
		}

		ctx := c.Request.Context()
		results := make([]saveResult, len(body.Components))
		var wg sync.WaitGroup
		for i, ic := range body.Components {
			wg.Add(1)
			go func(i int, ic incomingComponent) {
				defer wg.Done()
				results[i] = d.saveComponent(ctx, layoutID, ic)
			}(i, ic)
		}
		wg.Wait()

		failed := false
		for _, r := range results {
			if len(r.Errors) > 0 {
				failed = true
				break
			}
		}

		enriched, err := d.enrichLayout(ctx, layout)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		status := http.StatusOK
		if failed {
			status = http.StatusMultiStatus
		}
		c.JSON(status, gin.H{"layout": enriched, "results": results})
	}
}

// saveComponent нормализует data по актуальной схеме типа и пишет
// один компонент. Ошибка одного элемента не трогает остальные.
func (d *Deps) saveComponent(ctx context.Context, layoutID string, ic incomingComponent) saveResult {
	name := strings.TrimSpace(ic.Name)
	res := saveResult{ID: ic.id(), Name: name}
	if name == "" {
		res.Errors = append(res.Errors, ferr(errRequired, "name", "component name is required"))
		return res
	}
	if !schema.IsIdentifier(ic.Type) {
		res.Errors = append(res.Errors, ferr(schema.ErrNameInvalid, "type", "invalid component type name"))
		return res
	}

	// схема может отсутствовать — кастомный компонент допустим
	var fields []schema.FieldDefinition
	if ct, err := d.Types.Resolve(ctx, ic.Type); err != nil {
		res.Errors = append(res.Errors, ferr("store_error", "type", err.Error()))
		return res
	} else if ct != nil {
		fields = ct.Fields
	}
	data := d.Pipe.Normalize(name, ic.Data, fields)

	if ic.id() == "" {
		if _, err := d.Docs.FindOne(ctx, colComponents, "name", name); err == nil {
			res.Errors = append(res.Errors, ferr(errDuplicateName, "name", "component name must be unique"))
			return res
		}
		rec, err := d.Docs.Insert(ctx, colComponents, map[string]any{
			"typeName":  ic.Type,
			"name":      name,
			"layoutRef": layoutID,
			"order":     ic.Order,
			"isActive":  true,
			"data":      data,
		})
		if err != nil {
			res.Errors = append(res.Errors, ferr("store_error", "", err.Error()))
			return res
		}
		res.ID = rec.ID
		return res
	}

	_, err := d.Docs.Patch(ctx, colComponents, ic.id(), map[string]any{
		"typeName": ic.Type,
		"name":     name,
		"order":    ic.Order,
		"data":     data,
	})
	if err != nil {
		code := "store_error"
		if errors.Is(err, store.ErrNotFound) {
			code = errNotFound
		}
		res.Errors = append(res.Errors, ferr(code, "id", err.Error()))
	}
	return res
}

// DELETE /api/admin/layouts/:id — каскадно деактивирует компоненты
// лейаута (осиротевшие компоненты после удаления лейаута — известная
// проблема, здесь закрыта каскадом).
func LayoutDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		if err := d.Docs.SoftDelete(ctx, colLayouts, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Layout")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		comps, _, err := d.Docs.List(ctx, colComponents, store.Query{
			Filters: map[string]any{"layoutRef": id},
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		for _, comp := range comps {
			if err := d.Docs.SoftDelete(ctx, colComponents, comp.ID); err != nil {
				d.Log.Error().Err(err).Str("component", comp.ID).Msg("cascade delete failed")
			}
		}
		c.Status(http.StatusNoContent)
	}
}

// layoutComponents — живые компоненты лейаута в порядке order.
func layoutComponents(ctx context.Context, d *Deps, layoutID string) ([]*store.Record, error) {
	recs, _, err := d.Docs.List(ctx, colComponents, store.Query{
		Filters: map[string]any{"layoutRef": layoutID},
		Sort:    []store.SortKey{{Field: "order"}},
	})
	return recs, err
}
