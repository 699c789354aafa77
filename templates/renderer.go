// Package templates renders the server-side pages. Every page is parsed together
// with base.html and the partials, and executed through the "base" layout.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/gin-gonic/gin/render"

	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/utils"
)

//go:embed html static
var files embed.FS

const layout = "base"

// PostList is the data of the "post_list" partial shared by every feed.
type PostList struct {
	Posts      []models.Post
	Page       utils.Page
	ShowAuthor bool
	ShowGroup  bool
}

// Renderer implements gin's render.HTMLRender over the embedded page set.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page. mediaURL turns an image key into its public URL.
func New(mediaURL func(string) string) (*Renderer, error) {
	funcs := funcMap(mediaURL)
	shared := []string{"html/base.html", "html/partials/*.html"}

	pageFiles, err := fs.Glob(files, "html/*/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: map[string]*template.Template{}}
	for _, file := range pageFiles {
		if strings.HasPrefix(file, "html/partials/") {
			continue
		}
		name := strings.TrimPrefix(file, "html/")
		tmpl, err := template.New(path.Base(file)).Funcs(funcs).ParseFS(files, append(shared, file)...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Instance satisfies render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		return render.String{Format: "template %q not found", Data: []any{name}}
	}
	return render.HTML{Template: tmpl, Name: layout, Data: data}
}

// RenderPostList renders the post list partial on its own, for caching.
func (r *Renderer) RenderPostList(list PostList) (template.HTML, error) {
	tmpl, ok := r.pages["posts/index.html"]
	if !ok {
		return "", fmt.Errorf("template %q not found", "posts/index.html")
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "post_list", list); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Static returns the embedded stylesheet directory.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
