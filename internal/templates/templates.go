package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed files/*
var TplFS embed.FS

// WriteTpl loads tplName from TplFS, executes it with data, and writes to outPath
func WriteTpl(tplName, outPath string, data any) error {
	return WriteTplWithFuncs(tplName, outPath, data, nil)
}

// WriteTplWithFuncs is WriteTpl with extra template functions.
func WriteTplWithFuncs(tplName, outPath string, data any, funcMap template.FuncMap) error {
	out, err := ExecuteTpl(tplName, data, funcMap)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}
	return nil
}

// ExecuteTpl renders an embedded template to a string.
func ExecuteTpl(tplName string, data any, funcMap template.FuncMap) (string, error) {
	t := template.New(filepath.Base(tplName))
	if funcMap != nil {
		t = t.Funcs(funcMap)
	}

	t, err := t.ParseFS(TplFS, tplName)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", tplName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", tplName, err)
	}
	return buf.String(), nil
}
