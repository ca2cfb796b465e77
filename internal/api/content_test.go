package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Полный путь контента: схема → страница → лейаут → bulk-сохранение
// компонента → публичная и редакторская выдача.
func TestContentRoundTrip(t *testing.T) {
	e := newTestEnv(t)

	// схема Testimonials
	w := e.do(t, http.MethodPost, "/api/admin/component-types", map[string]any{
		"name": "Testimonials",
		"fields": []map[string]any{
			{"name": "title", "kind": "text"},
			{"name": "items", "kind": "array", "children": []map[string]any{
				{"name": "author", "kind": "text"},
				{"name": "quote", "kind": "textarea"},
				{"name": "photo", "kind": "image"},
			}},
		},
	})
	requireStatus(t, w, http.StatusCreated)

	// страница
	w = e.do(t, http.MethodPost, "/api/admin/pages", map[string]any{
		"title":  "Home",
		"slug":   "home",
		"status": "published",
	})
	requireStatus(t, w, http.StatusCreated)
	pageID := decodeMap(t, w)["id"].(string)

	// лейаут на странице
	w = e.do(t, http.MethodPost, "/api/admin/layouts", map[string]any{
		"name":    "main",
		"pageRef": pageID,
	})
	requireStatus(t, w, http.StatusCreated)
	layoutID := decodeMap(t, w)["id"].(string)

	// bulk-сохранение компонента
	w = e.do(t, http.MethodPut, "/api/admin/layouts/"+layoutID, map[string]any{
		"components": []map[string]any{
			{
				"name":  "reviews",
				"type":  "Testimonials",
				"order": 1,
				"data": map[string]any{
					"title": "What clients say",
					"items": []map[string]any{
						{"author": "Ann", "quote": "Great", "photo": "/img/ann.jpg"},
					},
				},
			},
		},
	})
	requireStatus(t, w, http.StatusOK)

	// публичная выдача — голые значения
	w = e.doAnon(t, http.MethodGet, "/api/pages/home/content", nil)
	requireStatus(t, w, http.StatusOK)
	body := decodeMap(t, w)

	page := body["page"].(map[string]any)
	assert.Equal(t, "Home", page["title"])

	layouts := body["layouts"].([]any)
	require.Len(t, layouts, 1)
	comps := layouts[0].(map[string]any)["components"].(map[string]any)
	reviews := comps["reviews"].(map[string]any)
	data := reviews["data"].(map[string]any)
	assert.Equal(t, "What clients say", data["title"]) // без обёртки

	items := data["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Ann", item["author"])
	assert.Equal(t, "/img/ann.jpg", item["photo"])

	// редакторская выдача — обёртки + itemStructure
	w = e.do(t, http.MethodGet, "/api/admin/pages/home/content", nil)
	requireStatus(t, w, http.StatusOK)
	body = decodeMap(t, w)

	comps = body["layouts"].([]any)[0].(map[string]any)["components"].(map[string]any)
	data = comps["reviews"].(map[string]any)["data"].(map[string]any)

	title := data["title"].(map[string]any)
	assert.Equal(t, "text", title["type"])
	assert.Equal(t, "text", title["fieldType"])
	assert.Equal(t, "What clients say", title["value"])

	arr := data["items"].(map[string]any)
	assert.Equal(t, "array", arr["type"])
	shape := arr["itemStructure"].([]any)
	require.Len(t, shape, 3)
	first := shape[0].(map[string]any)
	assert.Equal(t, "author", first["name"])
}

// Правка схемы видна старым инстансам без миграции данных.
func TestContentSchemaEditPropagates(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/admin/component-types", map[string]any{
		"name": "Hero",
		"fields": []map[string]any{
			{"name": "title", "kind": "text"},
		},
	})
	requireStatus(t, w, http.StatusCreated)

	w = e.do(t, http.MethodPost, "/api/admin/pages", map[string]any{
		"title": "Landing", "slug": "landing", "status": "published",
	})
	requireStatus(t, w, http.StatusCreated)
	pageID := decodeMap(t, w)["id"].(string)

	w = e.do(t, http.MethodPost, "/api/admin/layouts", map[string]any{
		"name": "hero-layout", "pageRef": pageID,
	})
	requireStatus(t, w, http.StatusCreated)
	layoutID := decodeMap(t, w)["id"].(string)

	w = e.do(t, http.MethodPut, "/api/admin/layouts/"+layoutID, map[string]any{
		"components": []map[string]any{
			{"name": "hero", "type": "Hero", "order": 1,
				"data": map[string]any{"title": "Hi"}},
		},
	})
	requireStatus(t, w, http.StatusOK)

	// схема получает новое поле с дефолтом
	w = e.do(t, http.MethodPut, "/api/admin/component-types/Hero", map[string]any{
		"fields": []map[string]any{
			{"name": "title", "kind": "text"},
			{"name": "subtitle", "kind": "text", "defaultValue": "sub"},
		},
	})
	requireStatus(t, w, http.StatusOK)

	w = e.do(t, http.MethodGet, "/api/admin/pages/landing/content", nil)
	requireStatus(t, w, http.StatusOK)
	body := decodeMap(t, w)
	comps := body["layouts"].([]any)[0].(map[string]any)["components"].(map[string]any)
	data := comps["hero"].(map[string]any)["data"].(map[string]any)

	sub := data["subtitle"].(map[string]any)
	assert.Equal(t, "sub", sub["value"]) // дефолт нового поля без миграции
}

func TestPublicContentHidesDraftPage(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/admin/pages", map[string]any{
		"title": "WIP", "slug": "wip", "status": "draft",
	})
	requireStatus(t, w, http.StatusCreated)

	w = e.doAnon(t, http.MethodGet, "/api/pages/wip/content", nil)
	requireStatus(t, w, http.StatusNotFound)

	// в редакторе черновик доступен
	w = e.do(t, http.MethodGet, "/api/admin/pages/wip/content", nil)
	requireStatus(t, w, http.StatusOK)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)

	w := e.doAnon(t, http.MethodGet, "/api/admin/pages", nil)
	requireStatus(t, w, http.StatusUnauthorized)
}
