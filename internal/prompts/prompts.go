// Package prompts holds the AI prompt templates bundled with the service.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

type Name string

const (
	ChapterContent         Name = "chapter_content"
	QuizGenerate           Name = "quiz_generate"
	QuizQuestionRegenerate Name = "quiz_question_regenerate"
	CoverImage             Name = "cover_image"
)

//go:embed prompts.yaml
var promptsFS embed.FS

type yamlCatalog struct {
	Version int                   `yaml:"version"`
	Prompts map[string]yamlPrompt `yaml:"prompts"`
}

type yamlPrompt struct {
	Schema string `yaml:"schema"`
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Template is a compiled prompt.
type Template struct {
	Name       Name
	SchemaName string
	system     *template.Template
	user       *template.Template
}

var (
	loadOnce sync.Once
	catalog  map[Name]Template
	loadErr  error
)

// Load parses raw YAML into compiled templates.
func Load(raw []byte) (map[Name]Template, error) {
	var c yamlCatalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if len(c.Prompts) == 0 {
		return nil, fmt.Errorf("parse prompts: no prompts defined")
	}
	out := make(map[Name]Template, len(c.Prompts))
	for name, p := range c.Prompts {
		sysT, err := template.New("system").Option("missingkey=zero").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("%s system template parse: %w", name, err)
		}
		userT, err := template.New("user").Option("missingkey=zero").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("%s user template parse: %w", name, err)
		}
		out[Name(name)] = Template{Name: Name(name), SchemaName: p.Schema, system: sysT, user: userT}
	}
	return out, nil
}

func loadDefault() {
	raw, err := promptsFS.ReadFile("prompts.yaml")
	if err != nil {
		loadErr = err
		return
	}
	catalog, loadErr = Load(raw)
}

// Get returns the bundled template for name.
func Get(name Name) (Template, error) {
	loadOnce.Do(loadDefault)
	if loadErr != nil {
		return Template{}, loadErr
	}
	t, ok := catalog[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown prompt %q", name)
	}
	return t, nil
}

// Names lists the bundled prompt names.
func Names() []Name {
	loadOnce.Do(loadDefault)
	out := make([]Name, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Template) System(in any) string { return render(t.system, in) }
func (t Template) User(in any) string   { return render(t.user, in) }

func render(t *template.Template, in any) string {
	if t == nil {
		return ""
	}
	var b bytes.Buffer
	_ = t.Execute(&b, in)
	return strings.TrimSpace(b.String())
}
