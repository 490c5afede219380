// Package chart renders analysis results as self-contained HTML pages with
// inline SVG.
package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
)

// LegendItem is one swatch of an HTML legend.
type LegendItem struct {
	Label string
	Color string
}

// Chart is a rendered figure.
type Chart struct {
	Title  string
	SVG    template.HTML
	Legend []LegendItem
	Note   string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 24px; color: #222; }
h1 { font-size: 20px; }
h2 { font-size: 16px; margin: 8px 0; }
.legend { display: flex; flex-wrap: wrap; gap: 4px 16px; margin: 8px 0; font-size: 12px; }
.legend span.swatch { display: inline-block; width: 12px; height: 12px; margin-right: 4px; vertical-align: middle; }
.note { font-size: 12px; color: #666; }
.tabs > input { display: none; }
.tabs > label { display: inline-block; padding: 6px 12px; border: 1px solid #ccc; border-bottom: none; cursor: pointer; background: #f4f4f4; font-size: 13px; }
.tabs > input:checked + label { background: #fff; font-weight: bold; }
.panel { display: none; border-top: 1px solid #ccc; padding-top: 12px; }
{{range $i, $c := .Charts}}#tab{{$i}}:checked ~ #panel{{$i}} { display: block; }
{{end}}</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Tabbed}}<div class="tabs">
{{range $i, $c := .Charts}}<input type="radio" name="tabs" id="tab{{$i}}"{{if eq $i 0}} checked{{end}}><label for="tab{{$i}}">{{$c.Title}}</label>
{{end}}{{range $i, $c := .Charts}}<div class="panel" id="panel{{$i}}">{{template "figure" $c}}</div>
{{end}}</div>{{else}}{{range .Charts}}{{template "figure" .}}{{end}}{{end}}
</body>
</html>
{{define "figure"}}<figure>
{{.SVG}}
{{if .Legend}}<div class="legend">{{range .Legend}}<div><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</div>{{end}}</div>{{end}}
{{if .Note}}<p class="note">{{.Note}}</p>{{end}}
</figure>{{end}}`))

type pageData struct {
	Title  string
	Charts []Chart
	Tabbed bool
}

// Render writes c as a standalone page.
func (c Chart) Render(w io.Writer) error {
	return pageTmpl.Execute(w, pageData{Title: c.Title, Charts: []Chart{c}})
}

// WriteFile renders c to path.
func (c Chart) WriteFile(path string) error {
	return writePage(path, func(w io.Writer) error { return c.Render(w) })
}

// Tabs renders several charts on one page, one tab per chart titled by the
// chart's title.
func Tabs(w io.Writer, title string, charts []Chart) error {
	return pageTmpl.Execute(w, pageData{Title: title, Charts: charts, Tabbed: true})
}

// WriteTabs renders a tabbed page to path.
func WriteTabs(path, title string, charts []Chart) error {
	return writePage(path, func(w io.Writer) error { return Tabs(w, title, charts) })
}

func writePage(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
