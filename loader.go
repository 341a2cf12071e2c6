package pongo3

import (
	"os"
	"path/filepath"
)

// TemplateLoader resolves a template name to its source text. Environment
// consults the loader only on a cache miss; once compiled, a template stays
// cached until RemoveTemplate/ClearTemplates evicts it.
type TemplateLoader interface {
	// Load returns the source for name, or an error (typically wrapping
	// KindTemplateNotFound) if it cannot be found.
	Load(name string) (string, error)
}

// FileSystemLoader resolves template names as paths relative to one or more
// root directories, searched in order -- the same shape as pongo2's
// template-set loader, generalized to multiple roots.
type FileSystemLoader struct {
	roots []string
}

// NewFileSystemLoader constructs a loader that searches each root in order.
func NewFileSystemLoader(roots ...string) *FileSystemLoader {
	return &FileSystemLoader{roots: roots}
}

func (l *FileSystemLoader) Load(name string) (string, error) {
	for _, root := range l.roots {
		full := filepath.Join(root, name)
		b, err := os.ReadFile(full)
		if err == nil {
			return string(b), nil
		}
	}
	return "", newErr(KindTemplateNotFound, "template not found: "+name).WithLocation(name, Span{})
}

// StringLoader is an in-memory loader useful for tests. Templates registered
// via Environment.AddTemplate are compiled directly and do not go through it.
type StringLoader struct {
	templates map[string]string
}

func NewStringLoader() *StringLoader {
	return &StringLoader{templates: make(map[string]string)}
}

func (l *StringLoader) Set(name, source string) { l.templates[name] = source }

func (l *StringLoader) Load(name string) (string, error) {
	if s, ok := l.templates[name]; ok {
		return s, nil
	}
	return "", newErr(KindTemplateNotFound, "template not found: "+name)
}
