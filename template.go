package guard

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"regexp"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

type block struct {
	name    string
	content string
}

type htmlTemplate struct {
	name   string
	raw    string
	parent *htmlTemplate
	blocks []block
}

type Vars map[string]interface{}

type TemplatingEngine interface {
	Render(tpl string, vars interface{}) (bytes.Buffer, error)
}

type engine struct {
	fsys      fs.FS
	templates map[string]*template.Template
	functions template.FuncMap
}

var (
	extendPattern = regexp.MustCompile(`(?s){%\s*extend\s*(.*?[^\s])\s*%}`)
	blockPattern  = regexp.MustCompile(`(?s)({%\s*block\s*(.*?)\s*%}(.*?)({%\s*end\s*%}))`)
)

// NewTemplatingEngine compiles the named templates from fsys up front; Render is read only
// afterwards and safe for concurrent use. A template may `{% extend other.html %}` and override
// its `{% block name %}...{% end %}` sections.
func NewTemplatingEngine(fsys fs.FS, functions template.FuncMap, names ...string) (TemplatingEngine, error) {
	e := &engine{
		fsys:      fsys,
		templates: make(map[string]*template.Template, len(names)),
	}
	e.registerFunctions(functions)
	for _, name := range names {
		tmpl, err := e.compile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "compile template %s", name)
		}
		e.templates[name] = tmpl
	}
	return e, nil
}

func (e *engine) registerFunctions(functions template.FuncMap) {
	if functions == nil {
		functions = template.FuncMap{}
	}
	functions["include"] = func(tpl string, vars interface{}) template.HTML {
		buffer, err := e.Render(tpl, vars)
		if err != nil {
			logger.Error(err)
			return ""
		}
		return template.HTML(buffer.String())
	}
	e.functions = functions
}

func (e *engine) Render(tpl string, vars interface{}) (bytes.Buffer, error) {
	buf := bytes.Buffer{}
	tmpl, ok := e.templates[tpl]
	if !ok {
		return buf, fmt.Errorf("template %s is not registered", tpl)
	}
	err := tmpl.ExecuteTemplate(&buf, path.Base(tpl), vars)
	return buf, err
}

func (e *engine) compile(name string) (*template.Template, error) {
	t, err := parse(name, e.fsys)
	if err != nil {
		return nil, err
	}
	return template.New(path.Base(name)).Funcs(e.functions).Parse(e.buildContent(t, nil))
}

// buildContent walks up to the root template; blocks of the most specific template are applied last.
func (e *engine) buildContent(tpl htmlTemplate, blocks []block) string {
	if tpl.parent != nil {
		return e.buildContent(*tpl.parent, append(tpl.blocks, blocks...))
	}
	for _, blk := range blocks {
		pattern := regexp.MustCompile(fmt.Sprintf(`(?s){%%\s*block\s*%s\s*%%}(.*?){%%\s*end\s*%%}`, regexp.QuoteMeta(blk.name)))
		tpl.raw = pattern.ReplaceAllLiteralString(tpl.raw, "{% block "+blk.name+" %}"+blk.content+"{% end %}")
	}
	return blockPattern.ReplaceAllString(tpl.raw, "$3")
}

func parse(name string, fsys fs.FS) (htmlTemplate, error) {
	tpl := htmlTemplate{
		name: name,
	}
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return tpl, err
	}
	tpl.raw = string(content)
	tpl.blocks = parseBlocks(tpl.raw)
	if parentName := parseParent(tpl.raw); parentName != "" {
		parentTpl, err := parse(path.Join(path.Dir(name), parentName), fsys)
		if err != nil {
			return tpl, err
		}
		tpl.parent = &parentTpl
	}
	return tpl, nil
}

func parseParent(content string) string {
	matches := extendPattern.FindStringSubmatch(content)
	if matches == nil {
		return ""
	}
	return matches[1]
}

func parseBlocks(content string) []block {
	matches := blockPattern.FindAllStringSubmatch(content, -1)
	if matches == nil {
		return nil
	}
	blocks := make([]block, len(matches))
	for i, m := range matches {
		blocks[i] = block{
			name:    m[2],
			content: m[3],
		}
	}
	return blocks
}
