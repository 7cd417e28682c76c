// Package templates renders prompt templates with {{name}} placeholders and
// loads the template library served by GET /templates.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Render replaces each {{name}} in body with vars[name]. Whitespace inside
// the braces is ignored. Placeholders with no variable are left verbatim.
func Render(body string, vars map[string]string) string {
	if len(vars) == 0 {
		return body
	}
	return placeholder.ReplaceAllStringFunc(body, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Placeholders returns the distinct placeholder names in body, in order of
// first appearance.
func Placeholders(body string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range placeholder.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// Template is one library entry.
type Template struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Category string   `json:"category,omitempty" yaml:"category"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
	Prompt   string   `json:"prompt" yaml:"prompt"`
}

// Library is an immutable set of templates.
type Library struct {
	templates []Template
	byID      map[string]int
}

// NewLibrary builds a library. Later entries with a duplicate id win.
func NewLibrary(templates []Template) *Library {
	l := &Library{
		templates: templates,
		byID:      make(map[string]int, len(templates)),
	}
	for i, t := range templates {
		l.byID[t.ID] = i
	}
	return l
}

// Load reads a library from a YAML or JSON file. The file holds either a
// list of templates or a mapping of name to template body. A missing file
// yields an empty library.
func Load(path string) (*Library, error) {
	if path == "" {
		return NewLibrary(nil), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewLibrary(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	return Parse(data)
}

// Parse decodes a library from YAML or JSON.
func Parse(data []byte) (*Library, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(root.Content) == 0 {
		return NewLibrary(nil), nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var list []Template
		if err := doc.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
		return NewLibrary(list), nil
	case yaml.MappingNode:
		var named map[string]string
		if err := doc.Decode(&named); err != nil {
			return nil, fmt.Errorf("decode templates: %w", err)
		}
		list := make([]Template, 0, len(named))
		// Mapping order is kept from the document.
		for i := 0; i+1 < len(doc.Content); i += 2 {
			id := doc.Content[i].Value
			list = append(list, Template{ID: id, Title: id, Prompt: named[id]})
		}
		return NewLibrary(list), nil
	default:
		return nil, fmt.Errorf("parse templates: expected a list or mapping")
	}
}

// All returns the templates in file order.
func (l *Library) All() []Template {
	out := make([]Template, len(l.templates))
	copy(out, l.templates)
	return out
}

// Get returns the template with id.
func (l *Library) Get(id string) (Template, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Template{}, false
	}
	return l.templates[i], true
}

// Len returns the number of templates.
func (l *Library) Len() int {
	return len(l.templates)
}

// Apply builds the final prompt for a chat request.
//
// When templateID names a template, its body is rendered with vars and the
// user prompt fills {{prompt}} and the legacy {prompt} token. Otherwise, when
// legacyName names a template, only {prompt} is replaced. Unknown ids leave
// prompt unchanged.
func (l *Library) Apply(prompt, templateID, legacyName string, vars map[string]string) string {
	if t, ok := l.Get(templateID); ok && templateID != "" {
		merged := make(map[string]string, len(vars)+1)
		for k, v := range vars {
			merged[k] = v
		}
		if prompt != "" {
			if _, set := merged["prompt"]; !set {
				merged["prompt"] = prompt
			}
		}
		body := Render(t.Prompt, merged)
		if p, ok := merged["prompt"]; ok {
			body = strings.ReplaceAll(body, "{prompt}", p)
		}
		return body
	}

	if t, ok := l.Get(legacyName); ok && legacyName != "" {
		return strings.ReplaceAll(t.Prompt, "{prompt}", prompt)
	}

	return prompt
}
