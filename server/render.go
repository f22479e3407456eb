package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"repo-view/api"

	"github.com/sirupsen/logrus"
)

func renderJSON(w http.ResponseWriter, log *logrus.Entry, data any) {
	bs, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).Error("marshal output json")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(bs); err != nil {
		log.WithError(err).Error("response write")
	}
}

func renderHTML(w http.ResponseWriter, log *logrus.Entry, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.WithError(err).Error("render template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Error("response write")
	}
}

// httpError writes the status matching the first sentinel err wraps.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrNotFound):
		http.Error(w, errorText(err), http.StatusNotFound)
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		http.Error(w, errorText(err), http.StatusForbidden)
	case errors.Is(err, api.ErrRateLimitExceeded):
		http.Error(w, errorText(err), http.StatusTooManyRequests)
	default:
		http.Error(w, errorText(err), http.StatusBadGateway)
	}
}

var pages = template.Must(template.New("pages").Parse(`
{{define "header"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
nav a, .parent { text-decoration: none; }
li.dir a { font-weight: bold; }
.error { color: #b00; }
.empty { color: #666; font-style: italic; }
.preview { border-top: 1px solid #ddd; margin-top: 1em; }
</style>
</head>
<body>
{{end}}

{{define "footer"}}</body>
</html>
{{end}}

{{define "repositories"}}{{template "header" .Title}}
<h1>{{if .Username}}{{.Username}}'s repositories{{else}}Repositories{{end}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Repositories}}<ul>
{{range .Repositories}}<li>{{if .Href}}<a href="{{.Href}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}{{if not .Public}} (private){{end}}</li>
{{end}}</ul>
{{else if not .Error}}<p class="empty">No repositories yet.</p>{{end}}
{{template "footer"}}{{end}}

{{define "view"}}{{template "header" .Title}}
{{if eq .Status "loading"}}<p>Loading…</p>
{{else if eq .Status "error"}}<p class="error">{{.Message}}</p>
{{else if eq .Status "empty"}}<p class="empty">No content.</p>
{{else}}
<nav>{{range $i, $c := .Crumbs}}{{if $i}} / {{end}}<a href="{{$c.Href}}">{{$c.Name}}</a>{{end}}</nav>
{{if .DownloadURL}}<p><a class="download" href="{{.DownloadURL}}">Download ZIP</a></p>{{end}}
{{if .ParentHref}}<p><a class="parent" href="{{.ParentHref}}">..</a></p>{{end}}
{{if .IsDirectory}}
{{if .Entries}}<ul>
{{range .Entries}}<li class="{{if .IsDir}}dir{{else}}file{{end}}"><a href="{{.Href}}">{{.Name}}{{if .IsDir}}/{{end}}</a></li>
{{end}}</ul>
{{else}}<p class="empty">This directory is empty.</p>{{end}}
{{else}}
<h2>{{.Filename}}</h2>
{{.Code}}
{{if .Preview}}<div class="preview">{{.Preview}}</div>{{end}}
{{end}}
{{end}}
{{template "footer"}}{{end}}
`))
