package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("").
		Funcs(template.FuncMap{"markdown": Markdown}).
		ParseFS(templateFS, "templates/*.html"),
)

// PageData is everything the main page shows.
type PageData struct {
	Title string
	Flash string

	// Document source
	DefaultPDF    string
	DefaultFound  bool
	DocumentName  string
	DocumentPages int
	MaxUploadMB   int64

	HasAPIKey bool

	// Quiz state
	Phase     string
	Chapter   string
	Archetype string
	Question  string
	Answer    string
	Feedback  string
	ImageURL  string
}

// HasDocument reports whether a document is open for the session or the
// default file is there to be opened.
func (p PageData) HasDocument() bool {
	return p.DocumentPages > 0 || p.DefaultFound
}

// Ready reports whether the generate action is available.
func (p PageData) Ready() bool {
	return p.HasDocument() && p.HasAPIKey
}

// ErrorData is shown when an action fails outright.
type ErrorData struct {
	Title   string
	Message string
	Detail  string
}

func Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "AI Tutor"
	}
	if err := templates.ExecuteTemplate(w, "page.html", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func ErrorPage(w io.Writer, data ErrorData) error {
	if data.Title == "" {
		data.Title = "AI Tutor"
	}
	if err := templates.ExecuteTemplate(w, "error.html", data); err != nil {
		return fmt.Errorf("render error page: %w", err)
	}
	return nil
}
