package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitrina/internal/content"
	"vitrina/internal/store"
)

// GET /api/pages/:slug/content — публичная плоская форма: только
// голые значения, без обёрток. Отсутствующие поля дефолтятся, ответ
// не падает из-за дырок в данных.
func PublicContentHandler(d *Deps) gin.HandlerFunc {
	return contentHandler(d, false)
}

// GET /api/admin/pages/:slug/content — редакторская форма: у каждого
// поля {type, fieldType, value}, у массивов itemStructure из актуальной
// схемы.
func AdminContentHandler(d *Deps) gin.HandlerFunc {
	return contentHandler(d, true)
}

func contentHandler(d *Deps, editor bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, err := d.Docs.FindOne(ctx, colPages, "slug", c.Param("slug"))
		if err != nil {
			failNotFound(c, "Page")
			return
		}
		if !editor && docString(page.Data, "status") != "published" {
			failNotFound(c, "Page")
			return
		}

		layouts, _, err := d.Docs.List(ctx, colLayouts, store.Query{
			Filters: map[string]any{"pageRef": page.ID},
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		outLayouts := make([]gin.H, 0, len(layouts))
		for _, layout := range layouts {
			if !docBool(layout.Data, "isActive", true) {
				continue
			}
			comps, err := d.layoutContent(ctx, layout, editor)
			if err != nil {
				fail(c, http.StatusInternalServerError, err.Error())
				return
			}
			outLayouts = append(outLayouts, gin.H{
				"name":       docString(layout.Data, "name"),
				"components": comps,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"page": gin.H{
				"title":  docString(page.Data, "title"),
				"slug":   docString(page.Data, "slug"),
				"status": docString(page.Data, "status"),
				"meta":   page.Data["meta"],
			},
			"layouts": outLayouts,
		})
	}
}

// layoutContent — компоненты лейаута, ключ — имя инстанса.
func (d *Deps) layoutContent(ctx context.Context, layout *store.Record, editor bool) (map[string]any, error) {
	comps, err := layoutComponents(ctx, d, layout.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(comps))
	for _, comp := range comps {
		if !docBool(comp.Data, "isActive", true) {
			continue
		}
		data, _ := comp.Data["data"].(map[string]any)
		typeName := docString(comp.Data, "typeName")

		var shaped map[string]any
		if editor {
			// itemStructure всегда из текущей схемы: правки схемы видны
			// старым инстансам без миграции
			ct, err := d.Types.Resolve(ctx, typeName)
			if err != nil {
				return nil, err
			}
			if ct != nil {
				shaped = content.Enrich(data, ct.Fields)
			} else {
				shaped = data
			}
		} else {
			shaped = content.Flatten(data)
		}

		out[docString(comp.Data, "name")] = gin.H{
			"type":  typeName,
			"name":  docString(comp.Data, "name"),
			"order": docFloat(comp.Data, "order"),
			"data":  shaped,
		}
	}
	return out, nil
}

// enrichLayout — редакторское представление лейаута после сохранения.
func (d *Deps) enrichLayout(ctx context.Context, layout *store.Record) (gin.H, error) {
	comps, err := d.layoutContent(ctx, layout, true)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"id":         layout.ID,
		"name":       docString(layout.Data, "name"),
		"components": comps,
	}, nil
}
