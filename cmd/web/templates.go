package main

import (
	"bytes"
	"fmt"
	"github.com/myrjola/fsvalidator/internal/catalog"
	"github.com/myrjola/fsvalidator/internal/contexthelpers"
	"github.com/myrjola/fsvalidator/internal/display"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/myrjola/fsvalidator/internal/workflow"
	"github.com/myrjola/fsvalidator/ui"
	"html/template"
	"log/slog"
	"net/http"
)

type BaseTemplateData struct {
	AnalysisEnabled bool
	CSRFToken       string
}

func (app *application) newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		AnalysisEnabled: app.analyzer.Configured(),
		CSRFToken:       contexthelpers.CSRFToken(r.Context()),
	}
}

type categoryView struct {
	Key         string
	Name        string
	Description string
	Selected    bool
	Empty       bool
	Questions   []questionView
}

type questionView struct {
	Text     string
	Label    string
	Selected bool
}

type currentView struct {
	Question string
	Text     string
	Failed   bool
}

type workspaceTemplateData struct {
	BaseTemplateData
	Notice         string
	Document       *workflow.Document
	IngestionError string
	Categories     []categoryView
	Category       *categoryView
	Current        *currentView
	Prior          []display.Entry
}

func (app *application) newWorkspaceTemplateData(
	r *http.Request,
	st *workflow.State,
	notice string,
) workspaceTemplateData {
	data := workspaceTemplateData{
		BaseTemplateData: app.newBaseTemplateData(r),
		Notice:           notice,
		Document:         nil,
		IngestionError:   st.IngestionError(),
		Categories:       nil,
		Category:         nil,
		Current:          nil,
		Prior:            nil,
	}
	if doc, ok := st.Document(); ok {
		data.Document = &doc
	}

	for _, category := range app.catalog.Categories() {
		view := newCategoryView(category, st)
		data.Categories = append(data.Categories, view)
		if view.Selected {
			data.Category = &view
		}
	}

	currentID := ""
	if current, ok := st.Current(); ok {
		currentID = current.ID
		data.Current = &currentView{
			Question: current.Question,
			Text:     current.Text(),
			Failed:   current.Failed(),
		}
	}
	data.Prior = display.PriorEntries(st.History(), currentID)
	return data
}

func newCategoryView(category catalog.Category, st *workflow.State) categoryView {
	view := categoryView{
		Key:         category.Key,
		Name:        category.Name,
		Description: category.Description,
		Selected:    category.Key == st.Category(),
		Empty:       category.Empty(),
		Questions:   make([]questionView, 0, len(category.Questions)),
	}
	for _, question := range category.Questions {
		view.Questions = append(view.Questions, questionView{
			Text:     question,
			Label:    display.Shorten(question, display.QuestionCap),
			Selected: view.Selected && question == st.Question(),
		})
	}
	return view
}

// pageTemplate returns a template for the given page name.
//
// pageName corresponds to directory inside ui/templates/pages folder. It has to include a template named "page".
func (app *application) pageTemplate(pageName string) (*template.Template, error) {
	patterns := []string{
		"templates/base.gohtml",
		fmt.Sprintf("templates/pages/%s/*.gohtml", pageName),
	}

	// We need to initialize the FuncMap before parsing the files. These will be overridden in the render function.
	t, err := template.New(pageName).Funcs(template.FuncMap{
		"nonce": func() string {
			panic("not implemented")
		},
		"csrf": func() string {
			panic("not implemented")
		},
	}).ParseFS(ui.Files, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return t, nil
}

// render executes templateName from the page templates of pageName. Use "base" for full pages.
func (app *application) render(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	pageName string,
	templateName string,
	data any,
) {
	var (
		err error
		t   *template.Template
	)

	if t, err = app.pageTemplate(pageName); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse template", slog.String("page", pageName)))
		return
	}

	buf := new(bytes.Buffer)
	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf("<input type=\"hidden\" name=\"csrf_token\" value=\"%s\"/>",
		template.HTMLEscapeString(contexthelpers.CSRFToken(ctx)))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // we trust the nonce since it's not provided by user.
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // the token is escaped above.
		},
	})
	if err = t.ExecuteTemplate(buf, templateName, data); err != nil {
		app.serverError(w, r, errors.Wrap(err, "execute template",
			slog.String("page", pageName), slog.String("template", templateName)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = buf.WriteTo(w)
}

// respond finishes a workflow transition. htmx requests get the re-rendered workspace, plain form posts are
// redirected to the home page unless there is a notice to show.
func (app *application) respond(w http.ResponseWriter, r *http.Request, st *workflow.State, notice string) {
	if app.htmx.NewHandler(w, r).IsHxRequest() {
		app.render(w, r, http.StatusOK, "home", "workspace", app.newWorkspaceTemplateData(r, st, notice))
		return
	}
	if notice != "" {
		app.render(w, r, http.StatusOK, "home", "base", app.newWorkspaceTemplateData(r, st, notice))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// notice shows msg without touching the workflow state. htmx requests get the message swapped into the notice area,
// other requests get a plain status response.
func (app *application) notice(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if !app.htmx.NewHandler(w, r).IsHxRequest() {
		app.clientError(w, r, status)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status), slog.String("notice", msg))
	w.Header().Set("HX-Retarget", "#notice")
	w.Header().Set("HX-Reswap", "innerHTML")
	app.render(w, r, http.StatusOK, "home", "notice", msg)
}
