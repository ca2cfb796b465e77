package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"vitrina/internal/schema"
	"vitrina/internal/store"
)

// POST /api/admin/layouts/:id/components
func ComponentCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		layoutID := c.Param("id")
		if _, err := d.Docs.Get(c.Request.Context(), colLayouts, layoutID); err != nil {
			failNotFound(c, "Layout")
			return
		}
		var body incomingComponent
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		body.ID, body.LegacyID = "", "" // создание, id игнорируем
		res := d.saveComponent(c.Request.Context(), layoutID, body)
		if len(res.Errors) > 0 {
			status := http.StatusBadRequest
			for _, e := range res.Errors {
				if e.Code == errDuplicateName {
					status = http.StatusConflict
				}
			}
			fail(c, status, "Component create failed", res.Errors...)
			return
		}
		rec, err := d.Docs.Get(c.Request.Context(), colComponents, res.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/admin/components/:id
func ComponentGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colComponents, c.Param("id"))
		if err != nil {
			failNotFound(c, "Component")
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// PATCH /api/admin/components/:id — частичное обновление. data мержится
// неглубоко по верхним полям: массивные/объектные поддеревья заменяются
// целиком, не домерживаются.
func ComponentPatchHandler(d *Deps) gin.HandlerFunc {
	type req struct {
		Name     *string        `json:"name"`
		Order    *float64       `json:"order"`
		IsActive *bool          `json:"isActive"`
		Data     map[string]any `json:"data"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		ctx := c.Request.Context()
		id := c.Param("id")
		cur, err := d.Docs.Get(ctx, colComponents, id)
		if err != nil {
			failNotFound(c, "Component")
			return
		}

		patch := map[string]any{}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if other, err := d.Docs.FindOne(ctx, colComponents, "name", name); err == nil && other.ID != id {
				fail(c, http.StatusConflict, "Component name already exists",
					ferr(errDuplicateName, "name", "name must be unique"))
				return
			}
			patch["name"] = name
		}
		if body.Order != nil {
			patch["order"] = *body.Order
		}
		if body.IsActive != nil {
			patch["isActive"] = *body.IsActive
		}

		if body.Data != nil {
			// нормализуем только присланные поля, остальные не трогаем
			var fields []schema.FieldDefinition
			if ct, err := d.Types.Resolve(ctx, docString(cur.Data, "typeName")); err != nil {
				fail(c, http.StatusInternalServerError, err.Error())
				return
			} else if ct != nil {
				fields = fieldsForKeys(ct.Fields, body.Data)
			}
			norm := d.Pipe.Normalize(docString(cur.Data, "name"), body.Data, fields)

			merged := map[string]any{}
			if curData, ok := cur.Data["data"].(map[string]any); ok {
				for k, v := range curData {
					merged[k] = v
				}
			}
			for k, v := range norm {
				merged[k] = v
			}
			patch["data"] = merged
		}

		rec, err := d.Docs.Patch(ctx, colComponents, id, patch)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// fieldsForKeys — подмножество схемы, затронутое патчем; иначе
// Normalize дописал бы image/array-обёртки для неприсланных полей.
func fieldsForKeys(fields []schema.FieldDefinition, data map[string]any) []schema.FieldDefinition {
	out := make([]schema.FieldDefinition, 0, len(data))
	for _, f := range fields {
		if _, ok := data[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// POST /api/admin/components/reorder {items:[{id, order}]}
// Bulk best-effort: каждая запись обновляется независимо и параллельно,
// без транзакции; по-элементный отчёт, успехи не откатываются.
func ComponentReorderHandler(d *Deps) gin.HandlerFunc {
	type item struct {
		ID    string  `json:"id"`
		Order float64 `json:"order"`
	}
	type req struct {
		Items []item `json:"items"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || len(body.Items) == 0 {
			fail(c, http.StatusBadRequest, "Invalid JSON: expected {items:[{id,order}]}")
			return
		}
		ctx := c.Request.Context()
		results := make([]saveResult, len(body.Items))
		var wg sync.WaitGroup
		for i, it := range body.Items {
			wg.Add(1)
			go func(i int, it item) {
				defer wg.Done()
				res := saveResult{ID: it.ID}
				if _, err := d.Docs.Patch(ctx, colComponents, it.ID, map[string]any{"order": it.Order}); err != nil {
					code := "store_error"
					if errors.Is(err, store.ErrNotFound) {
						code = errNotFound
					}
					res.Errors = append(res.Errors, ferr(code, "id", err.Error()))
				}
				results[i] = res
			}(i, it)
		}
		wg.Wait()
		c.JSON(http.StatusMultiStatus, results)
	}
}

// DELETE /api/admin/components/:id — soft delete.
func ComponentDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colComponents, c.Param("id")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Component")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/admin/components/:id/restore
func ComponentRestoreHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.Restore(c.Request.Context(), colComponents, c.Param("id")); err != nil {
			failNotFound(c, "Component")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
