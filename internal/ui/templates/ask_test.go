package templates

import (
	"context"
	"strings"
	"testing"
)

func TestAnswerEscapes(t *testing.T) {
	var b strings.Builder
	if err := Answer([]string{"Top 5 plans:\nGold", "<script>x</script>"}, false).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	html := b.String()
	if !strings.HasPrefix(html, `<div id="answer">`) {
		t.Errorf("unexpected wrapper: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("message was not escaped: %s", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("expected escaped script tag: %s", html)
	}
	if strings.Count(html, "<p>") != 2 {
		t.Errorf("expected two paragraphs: %s", html)
	}
}

func TestAnswerUnanswered(t *testing.T) {
	var b strings.Builder
	if err := Answer([]string{"The sales data is unavailable right now."}, true).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(b.String(), `class="unanswered"`) {
		t.Errorf("expected unanswered class: %s", b.String())
	}
}

func TestAskPage(t *testing.T) {
	var b strings.Builder
	if err := Ask([]string{"list_countries", "sales_growth"}).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	html := b.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"@get('/sse/ask')",
		"data-bind-question",
		`<option value="sales_growth">sales growth</option>`,
		`<div id="answer"></div>`,
		"</html>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}
