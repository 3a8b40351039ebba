package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "hexa "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestGenerateResource(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", "resource", "order-item",
		"--fields", "sku:string,qty:int",
		"--dir", dir,
		"--module", "example.com/shop")
	if err != nil {
		t.Fatalf("generate error = %v\n%s", err, out)
	}

	for _, name := range []string{"model.go", "module.go"} {
		path := filepath.Join(dir, "orderitem", name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !strings.HasPrefix(string(data), "// Package orderitem") && !strings.HasPrefix(string(data), "package orderitem") {
			t.Errorf("%s starts with %q", name, strings.SplitN(string(data), "\n", 2)[0])
		}
		if !strings.Contains(out, path) {
			t.Errorf("output does not list %s:\n%s", path, out)
		}
	}

	if _, err := execute(t, "generate", "resource", "order-item", "--fields", "sku", "--dir", dir, "--module", "example.com/shop"); err == nil {
		t.Error("second generate without --force should fail")
	}
	if _, err := execute(t, "g", "resource", "order-item", "--fields", "sku", "--dir", dir, "--module", "example.com/shop", "--force"); err != nil {
		t.Errorf("generate with --force error = %v", err)
	}
}

func TestGenerateResource_ModuleFromGoMod(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("go.mod", []byte("module example.com/blog\n\ngo 1.25.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "generate", "resource", "post", "--fields", "title,body:text"); err != nil {
		t.Fatalf("generate error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join("internal", "module", "post", "module.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"example.com/blog/internal/core"`) {
		t.Errorf("module.go does not import from go.mod module path:\n%s", data)
	}
}

func TestGenerateResource_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"missing fields", []string{"generate", "resource", "order", "--dir", dir, "--module", "m"}},
		{"missing name", []string{"generate", "resource", "--fields", "a", "--dir", dir, "--module", "m"}},
		{"bad type", []string{"generate", "resource", "order", "--fields", "a:money", "--dir", dir, "--module", "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("no go.mod", func(t *testing.T) {
		t.Chdir(t.TempDir())
		_, err := execute(t, "generate", "resource", "order", "--fields", "a")
		if err == nil || !strings.Contains(err.Error(), "--module") {
			t.Errorf("error = %v, want hint about --module", err)
		}
	})
}
