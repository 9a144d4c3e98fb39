package content

import (
	"errors"
	"testing"

	ferrors "github.com/conneroisu/folio/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow(state string) PostRow {
	return PostRow{
		AuthorTag:   "@ada",
		State:       state,
		Title:       "Notes on <engines>",
		Content:     "First line\nsecond & third",
		Tags:        "go, sqlite",
		Description: "A post about \"engines\"",
		Keywords:    "engines,notes",
	}
}

func TestProjectPreservesFields(t *testing.T) {
	row := sampleRow("published")

	view, err := Project(row)
	require.NoError(t, err)

	assert.Equal(t, Published, view.State)
	assert.Equal(t, row.AuthorTag, view.AuthorTag)
	assert.Equal(t, row.Title, view.Title)
	assert.Equal(t, row.Content, view.Content)
	assert.Equal(t, row.Tags, view.Tags)
	assert.Equal(t, row.Description, view.Description)
	assert.Equal(t, row.Keywords, view.Keywords)
}

func TestProjectResolvesEveryState(t *testing.T) {
	for raw, want := range map[string]State{"draft": Draft, "published": Published, "trashed": Trashed} {
		view, err := Project(sampleRow(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, view.State, raw)
	}
}

func TestProjectInvalidState(t *testing.T) {
	_, err := Project(sampleRow("archived"))
	require.Error(t, err)

	assert.True(t, ferrors.IsProjectionError(err))
	assert.False(t, ferrors.IsStoreError(err))
	assert.True(t, errors.Is(err, &ferrors.FolioError{
		Type: ferrors.ErrorTypeProjection,
		Code: ferrors.ErrCodeInvalidState,
	}))

	var unknown *UnknownStateError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "archived", unknown.Raw)
}

func TestProjectIsDeterministic(t *testing.T) {
	row := sampleRow("trashed")
	a, errA := Project(row)
	b, errB := Project(row)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestProjectAll(t *testing.T) {
	t.Run("keeps order", func(t *testing.T) {
		first := sampleRow("published")
		first.Title = "first"
		second := sampleRow("published")
		second.Title = "second"

		views, err := ProjectAll([]PostRow{first, second})
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "first", views[0].Title)
		assert.Equal(t, "second", views[1].Title)
	})

	t.Run("empty input", func(t *testing.T) {
		views, err := ProjectAll(nil)
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("no partial result", func(t *testing.T) {
		views, err := ProjectAll([]PostRow{sampleRow("published"), sampleRow("bogus")})
		require.Error(t, err)
		assert.Nil(t, views)
	})
}

func TestProjectPublished(t *testing.T) {
	t.Run("published rows pass", func(t *testing.T) {
		views, err := ProjectPublished([]PostRow{sampleRow("published"), sampleRow("published")})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	for _, state := range []string{"draft", "trashed"} {
		t.Run(state+" row is rejected", func(t *testing.T) {
			views, err := ProjectPublished([]PostRow{sampleRow("published"), sampleRow(state)})
			require.Error(t, err)
			assert.Nil(t, views)
			assert.True(t, ferrors.IsProjectionError(err))
			assert.True(t, errors.Is(err, &ferrors.FolioError{
				Type: ferrors.ErrorTypeProjection,
				Code: ferrors.ErrCodeNotPublished,
			}))
		})
	}

	t.Run("unknown state wins", func(t *testing.T) {
		_, err := ProjectPublished([]PostRow{sampleRow("draft"), sampleRow("bogus")})
		assert.True(t, errors.Is(err, &ferrors.FolioError{
			Type: ferrors.ErrorTypeProjection,
			Code: ferrors.ErrCodeInvalidState,
		}))
	})
}
