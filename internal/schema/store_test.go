package schema

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/fieldtype"
	"vitrina/internal/store"
)

func newTestStore() *Store {
	return NewStore(store.NewMemory(), fieldtype.NewDefault())
}

func heroFields() []FieldDefinition {
	return []FieldDefinition{
		{Name: "title", Kind: fieldtype.Text},
		{Name: "image", Kind: fieldtype.Image},
	}
}

func TestDefineAndResolve(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	ct, ferrs, err := s.Define(ctx, "Hero", heroFields(), []string{"landing"})
	require.NoError(t, err)
	require.Empty(t, ferrs)
	assert.NotEmpty(t, ct.ID)
	assert.Equal(t, 1, ct.Version)
	assert.True(t, ct.IsActive)
	require.Len(t, ct.ChangeLog, 1)

	got, err := s.Resolve(ctx, "hero") // регистр не важен
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hero", got.Name)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, fieldtype.Image, got.Fields[1].Kind)
}

func TestDefineDuplicateNameCaseInsensitive(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, _, err := s.Define(ctx, "Hero", heroFields(), nil)
	require.NoError(t, err)

	_, _, err = s.Define(ctx, "HERO", heroFields(), nil)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestDefineInvalidFields(t *testing.T) {
	s := newTestStore()
	_, ferrs, err := s.Define(context.Background(), "Bad", []FieldDefinition{
		{Name: "x", Kind: "nope"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, ferrs, 1)
	assert.Equal(t, ErrKindUnknown, ferrs[0].Code)
}

func TestUpdateBumpsVersionAndCapsChangeLog(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, _, err := s.Define(ctx, "Hero", heroFields(), nil)
	require.NoError(t, err)

	var last *ComponentType
	for i := 0; i < 15; i++ {
		fields := append(heroFields(), FieldDefinition{
			Name: fmt.Sprintf("extra%d", i), Kind: fieldtype.Text,
		})
		last, _, err = s.Update(ctx, "hero", fields)
		require.NoError(t, err)
	}

	assert.Equal(t, 16, last.Version)
	require.Len(t, last.ChangeLog, 10)
	// в журнале остались только последние правки
	assert.Equal(t, 7, last.ChangeLog[0].Version)
	assert.Equal(t, 16, last.ChangeLog[9].Version)

	// и это состояние действительно сохранено
	got, err := s.Get(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, 16, got.Version)
	assert.Len(t, got.ChangeLog, 10)
}

func TestResolveMissIsNotAnError(t *testing.T) {
	s := newTestStore()
	ct, err := s.Resolve(context.Background(), "CustomWidget")
	require.NoError(t, err)
	assert.Nil(t, ct)
}

func TestGetMissIsError(t *testing.T) {
	s := newTestStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateKeepsDocument(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, _, err := s.Define(ctx, "Hero", heroFields(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Deactivate(ctx, "hero"))

	got, err := s.Get(ctx, "Hero")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, got.Fields, 2) // поля не потеряны
}

func TestUpdateMissing(t *testing.T) {
	s := newTestStore()
	_, _, err := s.Update(context.Background(), "ghost", heroFields())
	assert.ErrorIs(t, err, ErrNotFound)
}
