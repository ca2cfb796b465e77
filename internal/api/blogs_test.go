package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlogPublicRendersMarkdown(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/admin/blogs", map[string]any{
		"title":  "Release notes",
		"body":   "# Hello\n\nSome *markdown* <script>alert(1)</script>",
		"status": "published",
	})
	requireStatus(t, w, http.StatusCreated)
	created := decodeMap(t, w)
	assert.Equal(t, "release-notes", created["slug"]) // слаг из заголовка
	assert.NotEmpty(t, created["publishedAt"])

	w = e.doAnon(t, http.MethodGet, "/api/blogs/release-notes", nil)
	requireStatus(t, w, http.StatusOK)
	post := decodeMap(t, w)

	html := post["html"].(string)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<em>markdown</em>")
	assert.NotContains(t, html, "<script>") // санировано
	_, hasRaw := post["body"]
	assert.False(t, hasRaw)
}

func TestBlogDraftHiddenFromPublic(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/admin/blogs", map[string]any{
		"title": "WIP post",
	})
	requireStatus(t, w, http.StatusCreated)

	w = e.doAnon(t, http.MethodGet, "/api/blogs/wip-post", nil)
	requireStatus(t, w, http.StatusNotFound)

	w = e.doAnon(t, http.MethodGet, "/api/blogs", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Empty(t, decodeList(t, w))

	// в админке черновик виден
	w = e.do(t, http.MethodGet, "/api/admin/blogs/wip-post", nil)
	requireStatus(t, w, http.StatusOK)

	require.Len(t, decodeList(t, e.do(t, http.MethodGet, "/api/admin/blogs", nil)), 1)
}

func TestBlogDuplicateSlug(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/admin/blogs", map[string]any{"title": "Same"})
	requireStatus(t, w, http.StatusCreated)
	w = e.do(t, http.MethodPost, "/api/admin/blogs", map[string]any{"title": "Other", "slug": "same"})
	requireStatus(t, w, http.StatusConflict)
}
