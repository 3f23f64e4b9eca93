// Package web embeds the HTML templates and static assets of the admin panel.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names accepted by Templates.Render.
const (
	PageLogin     = "login.html"
	PageDashboard = "dashboard.html"
)

// Static returns the static assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// the directory is embedded at build time
		panic(err)
	}
	return sub
}

// Templates holds one parsed template set per page, each combined with base.html.
type Templates struct {
	pages map[string]*template.Template
}

// ParseTemplates parses every page. Dates are shown in loc.
func ParseTemplates(loc *time.Location) (*Templates, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcs := Funcs(loc)

	t := &Templates{pages: make(map[string]*template.Template)}
	for _, page := range []string{PageLogin, PageDashboard} {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		t.pages[page] = tmpl
	}
	return t, nil
}

// Render executes page into w. Output is buffered so a failing template
// writes nothing.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Funcs returns the template helpers.
func Funcs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"money": Money,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("02/01/2006")
		},
		"truncate": Truncate,
		"price":    PriceValue,
	}
}

// Money formats a price as "$1,234.50 MXN".
func Money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v) + " MXN"
}

// PriceValue renders a stored price for a form field without rounding it.
func PriceValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Truncate shortens s to n characters followed by "...".
func Truncate(n int, s string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
