// Package statement extracts loyalty balances from statement e-mails and PDF
// statements using the same scoring as live pages.
package statement

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"milesync/internal"
	"milesync/internal/extractor"
	"milesync/internal/util"
)

type Extractor struct {
	scorer *extractor.Scorer
}

func New(scorer *extractor.Scorer) *Extractor {
	return &Extractor{scorer: scorer}
}

// Result is an extraction result plus where it came from.
type Result struct {
	internal.ExtractionResult
	Source  string `json:"source"`
	Subject string `json:"subject,omitempty"`
}

func (e *Extractor) FromFile(path string, program internal.Program) (Result, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml":
		return e.FromEmail(blob, program)
	case ".pdf":
		return e.FromPDF(blob, program)
	case ".html", ".htm":
		res, err := e.scorer.ExtractHTML(bytes.NewReader(blob), program)
		if err != nil {
			return Result{}, err
		}
		return Result{ExtractionResult: res, Source: "html"}, nil
	default:
		return Result{}, fmt.Errorf("unsupported statement file: %s", filepath.Base(path))
	}
}

func (e *Extractor) FromEmail(raw []byte, program internal.Program) (Result, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("reading statement e-mail: %w", err)
	}
	subject := env.GetHeader("Subject")

	if strings.TrimSpace(env.HTML) != "" {
		res, err := e.scorer.ExtractHTML(strings.NewReader(env.HTML), program)
		if err != nil {
			return Result{}, err
		}
		return Result{ExtractionResult: res, Source: "email_html", Subject: subject}, nil
	}

	page := linesToPage(util.SplitLines(env.Text))
	page.Text = util.NormalizeSpaces(subject + " " + page.Text)
	return Result{ExtractionResult: e.scorer.Extract(page, program), Source: "email_text", Subject: subject}, nil
}

func (e *Extractor) FromPDF(raw []byte, program internal.Program) (Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{}, fmt.Errorf("reading statement pdf: %w", err)
	}

	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, util.SplitLines(text)...)
	}

	page := linesToPage(lines)
	return Result{ExtractionResult: e.scorer.Extract(page, program), Source: "pdf"}, nil
}

// linesToPage turns every grouped number in lines into a paragraph fragment
// whose context is its own line plus the neighbouring ones.
func linesToPage(lines []string) extractor.Page {
	page := extractor.Page{Text: strings.Join(lines, " ")}
	for i, line := range lines {
		context := line
		if i > 0 {
			context = lines[i-1] + " " + context
		}
		if i+1 < len(lines) {
			context = context + " " + lines[i+1]
		}
		for _, token := range strings.Fields(line) {
			token = strings.Trim(token, ":;()[]")
			if !util.IsGroupedInt(token) {
				continue
			}
			page.Fragments = append(page.Fragments, extractor.Fragment{
				Text:    token,
				Tag:     "P",
				Context: context,
			})
		}
	}
	return page
}
