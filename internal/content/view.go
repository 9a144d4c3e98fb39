package content

import (
	"github.com/conneroisu/folio/internal/errors"
)

// PostRow is one row of the post -> user -> revision join as the store
// returns it. State is the raw storage string.
type PostRow struct {
	AuthorTag   string `db:"author_tag"`
	State       string `db:"state"`
	Title       string `db:"title"`
	Content     string `db:"content"`
	Tags        string `db:"tags"`
	Description string `db:"description"`
	Keywords    string `db:"keywords"`
}

// View is the render-ready projection of a PostRow. It is built per request
// and owns no identity.
type View struct {
	AuthorTag   string
	State       State
	Title       string
	Content     string
	Tags        string
	Description string
	Keywords    string
}

// Project resolves the row's state and copies every other field verbatim.
// Escaping is left to the renderer.
func Project(row PostRow) (View, error) {
	state, err := ParseState(row.State)
	if err != nil {
		return View{}, errors.NewProjectionError(
			errors.ErrCodeInvalidState,
			"cannot project post row",
			err,
		).WithContext("state", row.State).WithContext("title", row.Title)
	}

	return View{
		AuthorTag:   row.AuthorTag,
		State:       state,
		Title:       row.Title,
		Content:     row.Content,
		Tags:        row.Tags,
		Description: row.Description,
		Keywords:    row.Keywords,
	}, nil
}

// ProjectAll projects rows in order. It stops at the first row that fails;
// there is no partial result.
func ProjectAll(rows []PostRow) ([]View, error) {
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		view, err := Project(row)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ProjectPublished is ProjectAll for the public listing: a row that parses
// but is not published means the store's filter was bypassed, and is
// reported rather than dropped.
func ProjectPublished(rows []PostRow) ([]View, error) {
	views, err := ProjectAll(rows)
	if err != nil {
		return nil, err
	}

	for _, view := range views {
		if !view.State.IsPublic() {
			return nil, errors.NewProjectionError(
				errors.ErrCodeNotPublished,
				"store returned a post that is not published",
				nil,
			).WithContext("state", view.State.String()).WithContext("title", view.Title)
		}
	}
	return views, nil
}
