// Package page compiles and serves dynamic pages.
//
// A request whose path carries a page extension (".gohtml" by default) is
// served by the application's page Handler. The handler compiles the source
// into an artifact under the work directory when the artifact is missing or
// older than the source, loads it through an ArtifactLoader inside a
// per-page scope and pools the resulting instance until the next recompile.
//
// The default pipeline validates html/template sources (TemplateCompiler)
// and executes them with Data (TemplateLoader). ExecCompiler delegates the
// build to an external command.
package page
