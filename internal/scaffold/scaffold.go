// Package scaffold generates resource modules in the layout of the product
// module: a model file with SQL and document models plus request bodies, and
// a module file wiring repositories, controller and guarded routes.
package scaffold

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"github.com/simp-lee/hexa/internal/pkg"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// outputs maps each generated file to the template that renders it.
var outputs = []struct{ file, tmpl string }{
	{"model.go", "model.go.tmpl"},
	{"module.go", "module.go.tmpl"},
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Reserved field names come from the embedded base models.
var reserved = []string{"id", "isActive", "createdAt", "updatedAt", "deletedAt"}

// fieldType describes how a field type is rendered.
type fieldType struct {
	goType  string
	gorm    string
	create  string
	update  string
	useTime bool
}

var fieldTypes = map[string]fieldType{
	"string":  {goType: "string", gorm: "size:255;not null", create: "required,max=255", update: "omitempty,min=1,max=255"},
	"text":    {goType: "string", gorm: "type:text", create: "required", update: "omitempty,min=1"},
	"int":     {goType: "int", gorm: "not null;default:0", update: "omitempty"},
	"int64":   {goType: "int64", gorm: "not null;default:0", update: "omitempty"},
	"uint":    {goType: "uint", gorm: "not null;default:0", update: "omitempty"},
	"float":   {goType: "float64", gorm: "not null;default:0", update: "omitempty"},
	"float64": {goType: "float64", gorm: "not null;default:0", update: "omitempty"},
	"bool":    {goType: "bool", gorm: "not null;default:false", update: "omitempty"},
	"time":    {goType: "time.Time", gorm: "", create: "required", update: "omitempty", useTime: true},
}

// Field is one generated struct field.
type Field struct {
	GoName        string
	JSON          string
	GoType        string
	Gorm          string
	CreateBinding string
	UpdateBinding string
	useTime       bool
}

// ParseField parses a "name:type" field definition. The type defaults to string.
func ParseField(def string) (Field, error) {
	name, typ, _ := strings.Cut(strings.TrimSpace(def), ":")
	name = strings.TrimSpace(name)
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		typ = "string"
	}
	if !identifier.MatchString(name) {
		return Field{}, fmt.Errorf("invalid field name %q", name)
	}
	ft, ok := fieldTypes[typ]
	if !ok {
		return Field{}, fmt.Errorf("field %q: unsupported type %q (supported: %s)", name, typ, strings.Join(SupportedTypes(), ", "))
	}

	jsonName := pkg.ToCamel(name)
	if slices.Contains(reserved, jsonName) {
		return Field{}, fmt.Errorf("field %q is provided by the base model", name)
	}
	gorm := ft.gorm
	if gorm == "" {
		gorm = "column:" + pkg.ToSnake(jsonName)
	} else {
		gorm = "column:" + pkg.ToSnake(jsonName) + ";" + gorm
	}
	return Field{
		GoName:        pkg.ToPascal(name),
		JSON:          jsonName,
		GoType:        ft.goType,
		Gorm:          gorm,
		CreateBinding: ft.create,
		UpdateBinding: ft.update,
		useTime:       ft.useTime,
	}, nil
}

// SupportedTypes lists the accepted field types in sorted order.
func SupportedTypes() []string {
	out := make([]string, 0, len(fieldTypes))
	for t := range fieldTypes {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Resource is the template data for one generated module.
type Resource struct {
	// Label is the resource name as given, in kebab-case.
	Label string
	// Package is the lower-case package name.
	Package string
	// Type is the exported model type name.
	Type string
	// Route is the plural kebab-case path segment.
	Route string
	// Collection is the plural snake_case MongoDB collection.
	Collection string
	// Module is the Go module path the generated imports are rooted at.
	Module    string
	Fields    []Field
	NeedsTime bool
}

// NewResource builds a Resource from a name and field definitions.
func NewResource(name, modulePath string, defs []string) (*Resource, error) {
	name = strings.TrimSpace(name)
	if !identifier.MatchString(name) {
		return nil, fmt.Errorf("invalid resource name %q", name)
	}
	modulePath = strings.TrimSpace(modulePath)
	if modulePath == "" {
		return nil, errors.New("module path is required")
	}
	if len(defs) == 0 {
		return nil, errors.New("at least one field is required")
	}

	kebab := pkg.ToKebab(name)
	r := &Resource{
		Label:      kebab,
		Package:    strings.ReplaceAll(kebab, "-", ""),
		Type:       pkg.ToPascal(name),
		Route:      Pluralize(kebab),
		Collection: Pluralize(pkg.ToSnake(name)),
		Module:     modulePath,
	}

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		f, err := ParseField(def)
		if err != nil {
			return nil, err
		}
		if seen[f.JSON] {
			return nil, fmt.Errorf("duplicate field %q", f.JSON)
		}
		seen[f.JSON] = true
		r.NeedsTime = r.NeedsTime || f.useTime
		r.Fields = append(r.Fields, f)
	}
	return r, nil
}

// Pluralize returns the English plural of a lower-case word, handling the
// common -s, -x, -z, -ch, -sh and consonant -y endings.
func Pluralize(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"), strings.HasSuffix(word, "z"),
		strings.HasSuffix(word, "ch"), strings.HasSuffix(word, "sh"):
		return word + "es"
	case strings.HasSuffix(word, "y") && len(word) > 1 && !strings.ContainsRune("aeiou", rune(word[len(word)-2])):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// File is one rendered source file.
type File struct {
	Name    string
	Content []byte
}

// Render executes the templates for r and gofmt-formats the output.
func Render(r *Resource) ([]File, error) {
	if r == nil {
		return nil, errors.New("resource is nil")
	}
	files := make([]File, 0, len(outputs))
	for _, out := range outputs {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, out.tmpl, r); err != nil {
			return nil, fmt.Errorf("render %s: %w", out.file, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", out.file, err)
		}
		files = append(files, File{Name: out.file, Content: src})
	}
	return files, nil
}

// Write stores files under dir, creating it as needed, and returns the
// written paths. Existing files are only replaced when force is set; without
// it nothing is written if any target exists.
func Write(dir string, files []File, force bool) ([]string, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f.Name)
		if force {
			continue
		}
		if _, err := os.Stat(paths[i]); err == nil {
			return nil, fmt.Errorf("%s already exists (use --force to overwrite)", paths[i])
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", paths[i], err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	for i, f := range files {
		if err := os.WriteFile(paths[i], f.Content, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", paths[i], err)
		}
	}
	return paths, nil
}

// ModulePath reads the module path from the go.mod file at path.
func ModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module"); ok && rest != "" && (rest[0] == ' ' || rest[0] == '\t') {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s: no module directive", goModPath)
}
