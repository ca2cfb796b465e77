package content

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/fieldtype"
	"vitrina/internal/schema"
)

func testimonialFields() []schema.FieldDefinition {
	return []schema.FieldDefinition{
		{Name: "title", Kind: fieldtype.Text},
		{Name: "items", Kind: fieldtype.Array, Children: []schema.FieldDefinition{
			{Name: "author", Kind: fieldtype.Text},
			{Name: "quote", Kind: fieldtype.Textarea},
			{Name: "photo", Kind: fieldtype.Image},
		}},
	}
}

func TestNormalizeWrapsScalars(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	out := p.Normalize("hero", map[string]any{"title": "Hello"}, []schema.FieldDefinition{
		{Name: "title", Kind: fieldtype.Text},
	})

	w, ok := AsWrapper(out["title"])
	require.True(t, ok)
	assert.Equal(t, "text", w["type"])
	assert.Equal(t, "text", w["fieldType"])
	assert.Equal(t, "Hello", w["value"])
}

func TestNormalizeImageAlwaysWrapped(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	fields := []schema.FieldDefinition{{Name: "photo", Kind: fieldtype.Image}}

	// отсутствующее поле
	out := p.Normalize("card", map[string]any{}, fields)
	w, ok := AsWrapper(out["photo"])
	require.True(t, ok)
	assert.Equal(t, "", w["value"])

	// явный nil
	out = p.Normalize("card", map[string]any{"photo": nil}, fields)
	w, ok = AsWrapper(out["photo"])
	require.True(t, ok)
	assert.Equal(t, "", w["value"])
}

func TestNormalizeArrayNeverNull(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	fields := []schema.FieldDefinition{{
		Name: "items", Kind: fieldtype.Array,
		Children: []schema.FieldDefinition{{Name: "label", Kind: fieldtype.Text}},
	}}

	for _, payload := range []map[string]any{
		{},
		{"items": nil},
		{"items": "garbage"},
	} {
		out := p.Normalize("list", payload, fields)
		w, ok := AsWrapper(out["items"])
		require.True(t, ok)
		items, isSlice := w["value"].([]any)
		require.True(t, isSlice)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
}

func TestNormalizeKeepsUnknownKeys(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	out := p.Normalize("hero", map[string]any{
		"title":  "Hi",
		"legacy": map[string]any{"old": true},
	}, []schema.FieldDefinition{{Name: "title", Kind: fieldtype.Text}})

	assert.Equal(t, map[string]any{"old": true}, out["legacy"])
}

func TestNormalizeNilFieldsPassthrough(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	in := map[string]any{"anything": 42}
	out := p.Normalize("custom", in, nil)
	assert.Equal(t, in, out)
}

func TestNormalizeSanitizesRichText(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	out := p.Normalize("post", map[string]any{
		"body": "<p>ok</p><script>alert(1)</script>",
	}, []schema.FieldDefinition{{Name: "body", Kind: fieldtype.RichText}})

	w, ok := AsWrapper(out["body"])
	require.True(t, ok)
	assert.Equal(t, "<p>ok</p>", w["value"])
}

func TestEnrichAddsItemStructureFromCurrentSchema(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	fields := testimonialFields()
	stored := p.Normalize("testimonials", map[string]any{
		"title": "What clients say",
		"items": []any{
			map[string]any{"author": "Ann", "quote": "Great"},
		},
	}, fields)

	// схема получила новое поле после сохранения инстанса
	fields[1].Children = append(fields[1].Children, schema.FieldDefinition{
		Name: "rating", Kind: fieldtype.Number, Default: float64(5),
	})

	enriched := Enrich(stored, fields)
	w, ok := AsWrapper(enriched["items"])
	require.True(t, ok)
	shape, isShape := w["itemStructure"].([]schema.FieldDefinition)
	require.True(t, isShape)
	require.Len(t, shape, 4)
	assert.Equal(t, "rating", shape[3].Name)

	// элемент массива дополнился дефолтом нового поля
	items := w["value"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	rw, ok := AsWrapper(item["rating"])
	require.True(t, ok)
	assert.Equal(t, float64(5), rw["value"])
}

func TestEnrichMissingScalarDefaultsToEmpty(t *testing.T) {
	enriched := Enrich(map[string]any{}, []schema.FieldDefinition{
		{Name: "title", Kind: fieldtype.Text},
		{Name: "subtitle", Kind: fieldtype.Text, Default: "sub"},
	})

	w, _ := AsWrapper(enriched["title"])
	assert.Equal(t, "", w["value"])
	w, _ = AsWrapper(enriched["subtitle"])
	assert.Equal(t, "sub", w["value"])
}

func TestFlattenUnwrapsRecursively(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	fields := testimonialFields()
	stored := p.Normalize("testimonials", map[string]any{
		"title": "Reviews",
		"items": []any{
			map[string]any{"author": "Bob", "quote": "Nice", "photo": "/img/bob.jpg"},
		},
	}, fields)

	flat := Flatten(stored)
	assert.Equal(t, "Reviews", flat["title"])
	items := flat["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Bob", item["author"])
	assert.Equal(t, "/img/bob.jpg", item["photo"])
}

func TestFlattenSquashesDriftedNestedWrappers(t *testing.T) {
	// value внутри обёртки само оказалось обёрткой
	drifted := map[string]any{
		"title": map[string]any{
			"type": "text", "fieldType": "text",
			"value": map[string]any{"type": "text", "fieldType": "text", "value": "deep"},
		},
	}
	flat := Flatten(drifted)
	assert.Equal(t, "deep", flat["title"])
}

func TestFlattenEnrichEquivalence(t *testing.T) {
	p := NewPipeline(zerolog.Nop())
	fields := testimonialFields()
	stored := p.Normalize("testimonials", map[string]any{
		"title": "T",
		"items": []any{map[string]any{"author": "A", "quote": "Q"}},
	}, fields)

	direct := Flatten(stored)
	viaEditor := Flatten(Enrich(stored, fields))

	assert.Equal(t, direct["title"], viaEditor["title"])
	di := direct["items"].([]any)[0].(map[string]any)
	ei := viaEditor["items"].([]any)[0].(map[string]any)
	assert.Equal(t, di["author"], ei["author"])
	assert.Equal(t, di["quote"], ei["quote"])
}
