// Package templates holds the HTML components of the ask page.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

// Ask is the full page: a question box wired to /sse/ask and an empty answer
// area the server patches.
func Ask(intents []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Sales Assistant</title>`)
		fmt.Fprintf(&b, `<script type="module" src="%s"></script>`, templ.EscapeString(datastarScript))
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem}`)
		b.WriteString(`#answer p{white-space:pre-line}.unanswered{color:#a33}</style></head>`)
		b.WriteString(`<body data-signals="{question: '', intent: ''}"><h1>Sales Assistant</h1>`)
		b.WriteString(`<form data-on-submit="@get('/sse/ask')">`)
		b.WriteString(`<input type="text" data-bind-question placeholder="total sales for June 2023 in France" autofocus>`)
		b.WriteString(`<select data-bind-intent><option value="">total sales</option>`)
		for _, intent := range intents {
			v := templ.EscapeString(intent)
			fmt.Fprintf(&b, `<option value="%s">%s</option>`, v, strings.ReplaceAll(v, "_", " "))
		}
		b.WriteString(`</select><button type="submit">Ask</button></form>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := Answer(nil, false).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Answer renders the reply fragment that replaces #answer.
func Answer(messages []string, unanswered bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		if unanswered {
			b.WriteString(`<div id="answer" class="unanswered">`)
		} else {
			b.WriteString(`<div id="answer">`)
		}
		for _, m := range messages {
			fmt.Fprintf(&b, "<p>%s</p>", templ.EscapeString(m))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
