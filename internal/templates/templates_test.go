package templates

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRender(t *testing.T) {
	vars := map[string]string{"name": "Ada", "lang": "Go"}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"single", "Hello {{name}}", "Hello Ada"},
		{"whitespace in braces", "Hello {{ name }} in {{lang }}", "Hello Ada in Go"},
		{"repeated", "{{name}} and {{name}}", "Ada and Ada"},
		{"unknown kept verbatim", "Hi {{ who }} from {{name}}", "Hi {{ who }} from Ada"},
		{"no placeholders", "plain text", "plain text"},
		{"single braces untouched", "{name}", "{name}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.body, vars); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestRender_NilVars(t *testing.T) {
	if got := Render("keep {{x}}", nil); got != "keep {{x}}" {
		t.Errorf("Render() = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{a}} {{ b }} {{a}}")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Placeholders() = %v", got)
	}
}

const listYAML = `
- id: summarize
  title: Summarize
  category: writing
  tags: [summary]
  prompt: "Summarize the following in {{ length }} sentences: {{prompt}}"
- id: translate
  title: Translate
  prompt: "Translate to {{language}}: {prompt}"
`

func TestParse_List(t *testing.T) {
	lib, err := Parse([]byte(listYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if lib.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", lib.Len())
	}
	tmpl, ok := lib.Get("summarize")
	if !ok || tmpl.Category != "writing" || len(tmpl.Tags) != 1 {
		t.Errorf("Get(summarize) = %+v, %v", tmpl, ok)
	}
	if all := lib.All(); all[0].ID != "summarize" || all[1].ID != "translate" {
		t.Errorf("All() order = %v", all)
	}
}

func TestParse_JSONMapping(t *testing.T) {
	lib, err := Parse([]byte(`{"concise": "Answer briefly: {prompt}", "eli5": "Explain like I'm five: {prompt}"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	all := lib.All()
	if len(all) != 2 || all[0].ID != "concise" || all[1].ID != "eli5" {
		t.Errorf("All() = %+v", all)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte(`"just a string"`)); err == nil {
		t.Error("Parse() of a scalar should fail")
	}
}

func TestLoad(t *testing.T) {
	lib, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if lib.Len() != 0 {
		t.Errorf("Len() = %d, want 0", lib.Len())
	}

	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte(listYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if lib.Len() != 2 {
		t.Errorf("Len() = %d, want 2", lib.Len())
	}
}

func TestLibrary_Apply(t *testing.T) {
	lib, err := Parse([]byte(listYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name       string
		prompt     string
		templateID string
		legacy     string
		vars       map[string]string
		want       string
	}{
		{
			name:       "template id with vars and prompt",
			prompt:     "the text",
			templateID: "summarize",
			vars:       map[string]string{"length": "two"},
			want:       "Summarize the following in two sentences: the text",
		},
		{
			name:       "template id without prompt keeps placeholder",
			templateID: "summarize",
			vars:       map[string]string{"length": "two"},
			want:       "Summarize the following in two sentences: {{prompt}}",
		},
		{
			name:       "legacy token filled from prompt",
			prompt:     "hola",
			templateID: "translate",
			vars:       map[string]string{"language": "English"},
			want:       "Translate to English: hola",
		},
		{
			name:   "legacy name",
			prompt: "hola",
			legacy: "translate",
			want:   "Translate to {{language}}: hola",
		},
		{
			name:       "unknown template id leaves prompt unchanged",
			prompt:     "as is",
			templateID: "nope",
			want:       "as is",
		},
		{
			name:   "no template",
			prompt: "as is",
			want:   "as is",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lib.Apply(tt.prompt, tt.templateID, tt.legacy, tt.vars); got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}
