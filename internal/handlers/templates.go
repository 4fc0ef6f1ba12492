package handlers

import (
	"encoding/json"
	"html/template"
	"path/filepath"
	"strconv"
	"time"
)

// TemplateFuncs are the helpers available to the dashboard templates
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"str":  str,
		"num":  num,
		"date": date,
		"json": toJSON,
	}
}

// str renders an optional string, "-" when absent
func str(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// num renders an optional integer, "-" when absent
func num(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}

func date(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format(dateLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format(dateLayout)
	default:
		return "-"
	}
}

// toJSON embeds a value in a script block, used for chart data
func toJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

// TemplateFiles lists the dashboard templates under root
func TemplateFiles(root string) []string {
	files := []string{
		"layouts/header.html",
		"layouts/footer.html",
		"index.html",
		"404.html",
		"error.html",
		"ecosystems/overview.html",
		"ecosystems/repos.html",
		"ecosystems/developers.html",
		"ecosystems/developer.html",
	}
	for i, f := range files {
		files[i] = filepath.Join(root, f)
	}
	return files
}
