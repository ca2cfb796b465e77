package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vitrina/internal/store"
	"vitrina/internal/util"
)

var pageStatuses = map[string]bool{"draft": true, "published": true, "archived": true}

type pagePayload struct {
	Title     string         `json:"title"`
	Slug      string         `json:"slug"`
	Status    string         `json:"status"`
	LayoutRef string         `json:"layoutRef"`
	Order     *float64       `json:"order"`
	Meta      map[string]any `json:"meta"`
}

// POST /api/admin/pages
func PageCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body pagePayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr(errRequired, "title", "title is required"))
			return
		}
		slug := strings.TrimSpace(body.Slug)
		if slug == "" {
			slug = util.Slugify(body.Title)
		}
		if !util.IsValidSlug(slug) {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("slug_invalid", "slug", "invalid slug"))
			return
		}
		status := body.Status
		if status == "" {
			status = "draft"
		}
		if !pageStatuses[status] {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("status_invalid", "status", "status must be draft|published|archived"))
			return
		}
		if _, err := d.Docs.FindOne(c.Request.Context(), colPages, "slug", slug); err == nil {
			fail(c, http.StatusConflict, "Page slug already exists",
				ferr(errDuplicateName, "slug", "slug must be unique"))
			return
		}

		order := float64(0)
		if body.Order != nil {
			order = *body.Order
		}
		rec, err := d.Docs.Insert(c.Request.Context(), colPages, map[string]any{
			"title":     body.Title,
			"slug":      slug,
			"status":    status,
			"isActive":  true,
			"layoutRef": body.LayoutRef,
			"order":     order,
			"meta":      body.Meta,
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/admin/pages (все) и GET /api/pages (только published)
func PageListHandler(d *Deps, publicOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "order"}}
		}
		if publicOnly {
			if q.Filters == nil {
				q.Filters = map[string]any{}
			}
			q.Filters["status"] = "published"
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colPages, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/admin/pages/:slug
func PageGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.FindOne(c.Request.Context(), colPages, "slug", c.Param("slug"))
		if err != nil {
			failNotFound(c, "Page")
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// PATCH /api/admin/pages/:id
func PageUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		id := c.Param("id")
		for _, k := range []string{"id", "version", "created_at", "updated_at"} {
			delete(patch, k)
		}
		if raw, ok := patch["status"]; ok {
			if s, _ := raw.(string); !pageStatuses[s] {
				fail(c, http.StatusBadRequest, "Validation failed",
					ferr("status_invalid", "status", "status must be draft|published|archived"))
				return
			}
		}
		if raw, ok := patch["slug"]; ok {
			slug, _ := raw.(string)
			if !util.IsValidSlug(slug) {
				fail(c, http.StatusBadRequest, "Validation failed",
					ferr("slug_invalid", "slug", "invalid slug"))
				return
			}
			if other, err := d.Docs.FindOne(c.Request.Context(), colPages, "slug", slug); err == nil && other.ID != id {
				fail(c, http.StatusConflict, "Page slug already exists",
					ferr(errDuplicateName, "slug", "slug must be unique"))
				return
			}
		}
		rec, err := d.Docs.Patch(c.Request.Context(), colPages, id, patch)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Page")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// DELETE /api/admin/pages/:id — soft delete. Layout'ы не каскадируются:
// layout переиспользуется между страницами по ссылке.
func PageDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colPages, c.Param("id")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Page")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/admin/pages/:id/restore
func PageRestoreHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.Restore(c.Request.Context(), colPages, c.Param("id")); err != nil {
			failNotFound(c, "Page")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
