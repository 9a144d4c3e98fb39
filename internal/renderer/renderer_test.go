package renderer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/folio/internal/content"
	ferrors "github.com/conneroisu/folio/internal/errors"
)

func view(title string) content.View {
	return content.View{
		AuthorTag:   "@ada",
		State:       content.Published,
		Title:       title,
		Content:     "Hello there.\n\nSecond paragraph.",
		Tags:        "go, web ,,",
		Description: "about " + title,
		Keywords:    "k1,k2",
	}
}

func parse(t *testing.T, doc []byte) *html.Node {
	t.Helper()
	root, err := html.Parse(bytes.NewReader(doc))
	require.NoError(t, err)
	return root
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func element(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func withClass(name, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return element(name)(n) && attr(n, "class") == class
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for _, t := range findAll(n, func(n *html.Node) bool { return n.Type == html.TextNode }) {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

func TestRenderIndexDocument(t *testing.T) {
	doc, err := RenderIndex(context.Background(), HomeTitle, []content.View{view("First")})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("<!DOCTYPE html>")))

	root := parse(t, doc)

	titles := findAll(root, element("title"))
	require.Len(t, titles, 1)
	assert.Equal(t, HomeTitle, textOf(titles[0]))

	h1 := findAll(root, element("h1"))
	require.Len(t, h1, 1)
	assert.Equal(t, HomeTitle, textOf(h1[0]))

	articles := findAll(root, element("article"))
	require.Len(t, articles, 1)
	article := articles[0]
	assert.Equal(t, "published", attr(article, "data-state"))

	assert.Equal(t, "First", textOf(findAll(article, withClass("h2", "title"))[0]))
	assert.Equal(t, "@ada", textOf(findAll(article, withClass("p", "author"))[0]))
	assert.Equal(t, "Published", textOf(findAll(article, withClass("span", "state"))[0]))

	paras := findAll(findAll(article, withClass("div", "content"))[0], element("p"))
	require.Len(t, paras, 2)
	assert.Equal(t, "Hello there.", textOf(paras[0]))
	assert.Equal(t, "Second paragraph.", textOf(paras[1]))

	tags := findAll(article, element("li"))
	require.Len(t, tags, 2)
	assert.Equal(t, "go", textOf(tags[0]))
	assert.Equal(t, "web", textOf(tags[1]))

	metas := findAll(article, element("meta"))
	require.Len(t, metas, 2)
	assert.Equal(t, "description", attr(metas[0], "itemprop"))
	assert.Equal(t, "about First", attr(metas[0], "content"))
	assert.Equal(t, "keywords", attr(metas[1], "itemprop"))
	assert.Equal(t, "k1,k2", attr(metas[1], "content"))
}

func TestRenderIndexEscapesUserText(t *testing.T) {
	hostile := content.View{
		AuthorTag:   `<img src=x onerror=alert(1)>`,
		State:       content.Published,
		Title:       "<script>alert(1)</script>",
		Content:     "</div><script>steal()</script>",
		Tags:        "<b>bold</b>",
		Description: `"><script>alert(2)</script>`,
		Keywords:    `' onload='x`,
	}

	doc, err := RenderIndex(context.Background(), "<i>Home</i>", []content.View{hostile})
	require.NoError(t, err)

	out := string(doc)
	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, "<i>")

	root := parse(t, doc)
	assert.Empty(t, findAll(root, element("script")))
	assert.Empty(t, findAll(root, element("img")))
	assert.Empty(t, findAll(root, element("b")))

	// text survives escaping unchanged once parsed back
	assert.Equal(t, "<script>alert(1)</script>", textOf(findAll(root, withClass("h2", "title"))[0]))
	metas := findAll(root, func(n *html.Node) bool { return element("meta")(n) && attr(n, "itemprop") != "" })
	require.Len(t, metas, 2)
	assert.Equal(t, hostile.Description, attr(metas[0], "content"))
	assert.Equal(t, hostile.Keywords, attr(metas[1], "content"))
}

func TestRenderIndexPreservesOrder(t *testing.T) {
	posts := []content.View{view("charlie"), view("alpha"), view("bravo")}

	doc, err := RenderIndex(context.Background(), HomeTitle, posts)
	require.NoError(t, err)

	titles := findAll(parse(t, doc), withClass("h2", "title"))
	require.Len(t, titles, 3)
	for i, p := range posts {
		assert.Equal(t, p.Title, textOf(titles[i]))
	}
}

func TestRenderIndexEmpty(t *testing.T) {
	doc, err := RenderIndex(context.Background(), HomeTitle, nil)
	require.NoError(t, err)

	root := parse(t, doc)
	assert.Empty(t, findAll(root, element("article")))
	assert.Len(t, findAll(root, withClass("p", "empty")), 1)
	assert.Len(t, findAll(root, element("title")), 1)
}

func TestRenderIndexIsDeterministic(t *testing.T) {
	posts := []content.View{view("one"), view("two")}

	first, err := RenderIndex(context.Background(), HomeTitle, posts)
	require.NoError(t, err)
	second, err := RenderIndex(context.Background(), HomeTitle, posts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderIndexCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := RenderIndex(ctx, HomeTitle, []content.View{view("x")})
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, &ferrors.FolioError{Type: ferrors.ErrorTypeInternal, Code: ferrors.ErrCodeRenderFailed})
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	f.after--
	return len(p), nil
}

func TestIndexStopsOnWriteError(t *testing.T) {
	for _, after := range []int{0, 3, 12} {
		err := Index(HomeTitle, []content.View{view("a"), view("b")}).Render(context.Background(), &failingWriter{after: after})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	}
}

func TestPostStateBadge(t *testing.T) {
	for state, label := range map[content.State]string{
		content.Draft:     "Draft",
		content.Published: "Published",
		content.Trashed:   "Trashed",
	} {
		post := view("x")
		post.State = state

		var buf bytes.Buffer
		require.NoError(t, Post(post).Render(context.Background(), &buf))

		root := parse(t, buf.Bytes())
		badges := findAll(root, withClass("span", "state"))
		require.Len(t, badges, 1, label)
		assert.Equal(t, label, textOf(badges[0]))
		assert.Equal(t, state.String(), attr(findAll(root, element("article"))[0], "data-state"))
	}
}

func TestPostRejectsUndeclaredState(t *testing.T) {
	post := view("x")
	post.State = content.State(9)

	var buf bytes.Buffer
	err := Post(post).Render(context.Background(), &buf)

	var unknown *content.UnknownStateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "State(9)", unknown.Raw)
	assert.Zero(t, buf.Len())

	doc, err := RenderIndex(context.Background(), HomeTitle, []content.View{post})
	require.Error(t, err)
	assert.Nil(t, doc)
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"go", []string{"go"}},
		{"go, web", []string{"go", "web"}},
		{",go,,web,", []string{"go", "web"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitTags(tt.in), tt.in)
	}
}
