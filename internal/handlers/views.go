package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"chathub-backend/internal/config"
	"chathub-backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "hub", "chat", "dashboard"}

var templateFuncs = template.FuncMap{
	"isUser": func(r models.Role) bool { return r == models.RoleUser },
	"has": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
	"hasInt": func(list []int, v int) bool {
		for _, n := range list {
			if n == v {
				return true
			}
		}
		return false
	},
	"join": strings.Join,
}

// Views renders the server-side pages.
type Views struct {
	pages map[string]*template.Template
}

func NewViews() (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Page is the data every page shares.
type Page struct {
	Title       string
	AppName     string
	AppVersion  string
	Username    string
	Active      string
	Bots        []models.ChatbotProfile
	SocketToken string
	Flash       string
	Error       string
	Data        interface{}
}

func newPage(title, active string) Page {
	return Page{Title: title, AppName: config.AppName, AppVersion: config.AppVersion, Active: active}
}

func (v *Views) render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := v.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		log.Printf("[views] render %s: %v", name, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
