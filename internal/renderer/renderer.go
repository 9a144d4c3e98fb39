// Package renderer turns projected posts into the home page document.
//
// Components are plain templ.Components so they compose with anything else
// built on templ. Every user-originated string goes through
// templ.EscapeString, in text and attribute position alike.
package renderer

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/errors"
)

// HomeTitle is the title of the index page.
const HomeTitle = "Home page"

// Index renders a complete HTML document listing posts in the given order.
func Index(title string, posts []content.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`).text(title).raw(`</title></head><body>`)
		hw.raw(`<header><h1>`).text(title).raw(`</h1></header><main>`)
		if hw.err != nil {
			return hw.err
		}

		if len(posts) == 0 {
			hw.raw(`<p class="empty">Nothing has been published yet.</p>`)
		}
		for i := range posts {
			if hw.err != nil {
				return hw.err
			}
			if err := Post(posts[i]).Render(ctx, w); err != nil {
				return err
			}
		}

		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

// Post renders one post as an <article>. The SEO fields are carried as
// microdata meta tags rather than visible text. A view whose state is not
// one of the declared states is refused.
func Post(post content.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if !post.State.Valid() {
			return &content.UnknownStateError{Raw: post.State.String()}
		}

		hw := &htmlWriter{w: w}
		hw.raw(`<article class="post" data-state="`).text(post.State.String()).raw(`">`)
		hw.raw(`<meta itemprop="description" content="`).text(post.Description).raw(`">`)
		hw.raw(`<meta itemprop="keywords" content="`).text(post.Keywords).raw(`">`)
		hw.raw(`<header><h2 class="title">`).text(post.Title).raw(`</h2>`)
		hw.raw(`<p class="author">`).text(post.AuthorTag).raw(`</p>`)
		hw.raw(`<span class="state">`).text(post.State.Label()).raw(`</span></header>`)

		hw.raw(`<div class="content">`)
		for _, para := range paragraphs(post.Content) {
			hw.raw(`<p>`).text(para).raw(`</p>`)
		}
		hw.raw(`</div>`)

		if tags := SplitTags(post.Tags); len(tags) > 0 {
			hw.raw(`<ul class="tags">`)
			for _, tag := range tags {
				hw.raw(`<li>`).text(tag).raw(`</li>`)
			}
			hw.raw(`</ul>`)
		}

		hw.raw(`</article>`)
		return hw.err
	})
}

// RenderIndex renders the index page into memory so that a failure never
// leaves a half-written response behind.
func RenderIndex(ctx context.Context, title string, posts []content.View) ([]byte, error) {
	var buf bytes.Buffer
	if err := Index(title, posts).Render(ctx, &buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRenderFailed, "cannot render index page", err)
	}
	return buf.Bytes(), nil
}

// SplitTags splits the stored comma separated tag list, dropping blanks.
func SplitTags(tags string) []string {
	var out []string
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// paragraphs splits body text on blank lines.
func paragraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(body, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			out = append(out, para)
		}
	}
	return out
}

// htmlWriter keeps the first write error and turns later writes into no-ops.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) *htmlWriter {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

func (h *htmlWriter) text(s string) *htmlWriter {
	return h.raw(templ.EscapeString(s))
}
