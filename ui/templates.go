package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// loadTemplates parses the page templates and renders the usage
// instructions once
func (s *Server) loadTemplates() error {
	tmpl, err := template.New("").ParseFS(s.files, "ui/templates/*.html")
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	s.templates = tmpl

	source, err := fs.ReadFile(s.files, "ui/templates/instructions.md")
	if err != nil {
		return fmt.Errorf("read instructions: %w", err)
	}
	s.instructions = renderMarkdown(source)
	return nil
}

// renderMarkdown converts trusted, embedded markdown to HTML
func renderMarkdown(source []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(source, p, renderer))
}

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	// render to a buffer so a template error never leaves a half-written page
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[renderTemplate] FAILED - Template %s: %v", templateName, err)
		c.String(500, "Internal Server Error")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(200)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("[renderTemplate] Error writing template response: %v", err)
	}
}
