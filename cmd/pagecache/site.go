package main

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/jonwraymond/pagecache/csrf"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
<meta name="csrf-token" content="{{.Token}}">
</head>
<body>
<nav><a href="/site/index">Home</a> <a href="/site/about">About</a> <a href="/site/contact">Contact</a></nav>
<h1>{{.Title}}</h1>
{{if .Query}}<p>Results for {{.Query}}</p>{{end}}
{{if .Message}}<p>{{.Message}}</p>{{end}}
<form method="get" action="/site/search"><input name="q" value="{{.Query}}"><button>Search</button></form>
{{if .Contact}}<form method="post" action="/site/contact">
<input type="hidden" name="_csrf" value="{{.Token}}">
<textarea name="message"></textarea>
<button>Send</button>
</form>{{end}}
<footer>Rendered {{.Rendered}}</footer>
</body>
</html>
`))

// siteRoutes lists the cacheable routes and actions of the demo site.
var siteRoutes = map[string][]string{
	"site": {"index", "about", "contact", "search"},
}

type page struct {
	Title    string
	Token    string
	Query    string
	Message  string
	Contact  bool
	Rendered string
}

// site is the demo application served behind the cache.
type site struct {
	now func() time.Time
}

func newSite() *site {
	return &site{now: time.Now}
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, _ := csrf.TokenFromContext(r.Context())
	p := page{Token: token, Rendered: s.now().UTC().Format(time.RFC3339)}

	switch r.URL.Path {
	case "/", "/site", "/site/index":
		p.Title = "Home"
	case "/site/about":
		p.Title = "About"
	case "/site/contact":
		p.Title = "Contact"
		p.Contact = true
		if r.Method == http.MethodPost {
			p.Message = "Thanks, your message was received."
		}
	case "/site/search":
		p.Title = "Search"
		p.Query = r.URL.Query().Get("q")
	default:
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
