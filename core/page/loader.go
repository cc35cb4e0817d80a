package page

import (
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/appserver/core/handler"
	"github.com/dmitrymomot/appserver/core/scope"
	"github.com/dmitrymomot/appserver/core/session"
)

// ArtifactLoader turns a compiled artifact into a unit factory.
type ArtifactLoader interface {
	LoadArtifact(artifact string) (scope.Factory, error)
}

// TemplateLoader loads html/template artifacts.
type TemplateLoader struct{}

// LoadArtifact implements ArtifactLoader. The template is parsed once per
// load; every factory call yields a handler sharing it.
func (TemplateLoader) LoadArtifact(artifact string) (scope.Factory, error) {
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	tmpl, err := template.New(filepath.Base(artifact)).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	return func() (any, error) {
		return &templatePage{tmpl: tmpl}, nil
	}, nil
}

// Data is the value pages are executed with.
type Data struct {
	Request *handler.Request
	Session *session.Session
	Params  url.Values
	App     handler.Application
}

type templatePage struct {
	tmpl *template.Template
}

func (p *templatePage) Serve(req *handler.Request, resp *handler.Response) error {
	w, err := resp.Writer()
	if err != nil {
		return err
	}
	return p.tmpl.Execute(w, Data{
		Request: req,
		Session: req.Session,
		Params:  req.Params,
		App:     req.App,
	})
}
