package templates

import (
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/cppla/yatube/utils"
)

func funcMap(mediaURL func(string) string) template.FuncMap {
	return template.FuncMap{
		// text renders user input as escaped paragraphs.
		"text": func(s string) template.HTML {
			return template.HTML(utils.Linebreaks(s))
		},
		// safe keeps a sanitized HTML subset, for admin-written group descriptions.
		"safe": func(s string) template.HTML {
			return template.HTML(utils.Sanitize(s))
		},
		"date": func(t time.Time) string {
			return t.Format("2 January 2006 15:04")
		},
		"media": mediaURL,
		"truncatewords": truncateWords,
		"dict":          dict,
	}
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, errors.New("dict keys must be strings")
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}
