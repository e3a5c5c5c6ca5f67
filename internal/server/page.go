package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/matzehuels/tractstory/pkg/chart"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageStep struct {
	Index int
	Name  string
	Title string
}

type pageData struct {
	Steps   []pageStep
	Tracts  string
	Dataset string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	ds := s.Dataset()
	data := pageData{
		Tracts:  humanize.Comma(int64(len(ds.Tracts))),
		Dataset: short(ds.Hash),
	}
	for _, st := range chart.Steps() {
		data.Steps = append(data.Steps, pageStep{Index: int(st), Name: st.String(), Title: st.Title()})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("page render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
