package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"vitrina/internal/store"
	"vitrina/internal/util"
)

var (
	blogMarkdown = goldmark.New()
	blogPolicy   = bluemonday.UGCPolicy()
)

// renderMarkdown — markdown → санированный HTML для публичной выдачи.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := blogMarkdown.Convert([]byte(src), &buf); err != nil {
		return blogPolicy.Sanitize(src)
	}
	return blogPolicy.Sanitize(buf.String())
}

type blogPayload struct {
	Title  string   `json:"title"`
	Slug   string   `json:"slug"`
	Body   string   `json:"body"` // markdown
	Tags   []string `json:"tags"`
	Status string   `json:"status"`
}

// POST /api/admin/blogs
func BlogCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body blogPayload
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
		if _, err := d.Docs.FindOne(c.Request.Context(), colBlogs, "slug", slug); err == nil {
			fail(c, http.StatusConflict, "Blog slug already exists",
				ferr(errDuplicateName, "slug", "slug must be unique"))
			return
		}
		status := body.Status
		if status == "" {
			status = "draft"
		}
		doc := map[string]any{
			"title":    body.Title,
			"slug":     slug,
			"body":     body.Body,
			"tags":     body.Tags,
			"status":   status,
			"isActive": true,
		}
		if status == "published" {
			doc["publishedAt"] = time.Now().UTC().Format(time.RFC3339)
		}
		rec, err := d.Docs.Insert(c.Request.Context(), colBlogs, doc)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/blogs (public: только published) и /api/admin/blogs
func BlogListHandler(d *Deps, publicOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "publishedAt", Desc: true}}
		}
		if publicOnly {
			q.Filters = map[string]any{"status": "published"}
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colBlogs, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			flat := store.Flatten(rec)
			if publicOnly {
				delete(flat, "body") // листинг без тела
			}
			out = append(out, flat)
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/blogs/:slug — тело отдаётся отрендеренным HTML.
func BlogGetHandler(d *Deps, publicOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.FindOne(c.Request.Context(), colBlogs, "slug", c.Param("slug"))
		if err != nil {
			failNotFound(c, "Blog post")
			return
		}
		if publicOnly && docString(rec.Data, "status") != "published" {
			failNotFound(c, "Blog post")
			return
		}
		flat := store.Flatten(rec)
		if publicOnly {
			flat["html"] = renderMarkdown(docString(rec.Data, "body"))
			delete(flat, "body")
		}
		c.JSON(http.StatusOK, flat)
	}
}

// PATCH /api/admin/blogs/:id
func BlogUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		for _, k := range []string{"id", "version", "created_at", "updated_at"} {
			delete(patch, k)
		}
		if s, _ := patch["status"].(string); s == "published" {
			if _, has := patch["publishedAt"]; !has {
				patch["publishedAt"] = time.Now().UTC().Format(time.RFC3339)
			}
		}
		rec, err := d.Docs.Patch(c.Request.Context(), colBlogs, c.Param("id"), patch)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Blog post")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// DELETE /api/admin/blogs/:id
func BlogDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colBlogs, c.Param("id")); err != nil {
			failNotFound(c, "Blog post")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
