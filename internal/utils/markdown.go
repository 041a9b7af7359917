package utils

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownToHTML renders markdown as an HTML fragment. Raw HTML in the input
// is dropped, so cell values and model output cannot inject markup.
func MarkdownToHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(md), p, r))
}

// MarkdownPage renders markdown as a complete HTML document titled title.
func MarkdownPage(title, md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.CompletePage,
		Title: title,
	})
	return string(markdown.ToHTML([]byte(md), p, r))
}
