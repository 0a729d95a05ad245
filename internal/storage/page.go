package storage

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const pageContentType = "text/html; charset=utf-8"

// Page is the public rendering of a published status value.
type Page struct {
	Title     string
	Text      string
	UpdatedAt time.Time
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>body{font-family:sans-serif;margin:2rem}#text{white-space:pre-wrap;font-size:1.5rem}</style>
</head>
<body>
<div id="text">{{.Text}}</div>
<time datetime="{{.Stamp}}">{{.Stamp}}</time>
</body>
</html>
`))

// RenderPage renders page as a standalone HTML document. Text is escaped.
func RenderPage(page Page) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title string
		Text  string
		Stamp string
	}{
		Title: page.Title,
		Text:  page.Text,
		Stamp: page.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}
