package extractor

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"milesync/internal"
	"milesync/internal/util"
)

const (
	candidateTags = "h1,h2,h3,span,strong,b,div,p"
	hiddenTags    = "script,style,noscript,template"
)

var genericLoggedInSelectors = []string{`[class*="logged"]`, `[class*="user-menu"]`}

// Fragment is one text-bearing element as seen by the scorer.
type Fragment struct {
	Text     string
	Tag      string
	Context  string
	InTarget bool
}

// Page is everything the scorer needs from a rendered page.
type Page struct {
	Fragments []Fragment
	Text      string
	LoggedIn  bool
}

func ParseHTML(r io.Reader, program internal.Program) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, err
	}
	return FromDocument(doc, program), nil
}

// FromDocument walks the candidate elements in document order. Context is the
// text of the closest div, the element itself included. Non-rendered elements
// are removed from doc first so only visible text is scored.
func FromDocument(doc *goquery.Document, program internal.Program) Page {
	page := Page{}
	doc.Find(hiddenTags).Remove()

	doc.Find(candidateTags).Each(func(_ int, sel *goquery.Selection) {
		text := util.NormalizeSpaces(sel.Text())
		if text == "" {
			return
		}
		frag := Fragment{
			Text: text,
			Tag:  strings.ToUpper(goquery.NodeName(sel)),
		}
		if ctx := sel.Closest("div"); ctx.Length() > 0 {
			frag.Context = util.NormalizeSpaces(ctx.Text())
		}
		if program.Rules.TargetSelector != "" {
			frag.InTarget = sel.Closest(program.Rules.TargetSelector).Length() > 0
		}
		page.Fragments = append(page.Fragments, frag)
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		page.Text = util.NormalizeSpaces(doc.Text())
	} else {
		page.Text = util.NormalizeSpaces(body.Text())
	}

	page.LoggedIn = anyMatch(doc, program.Rules.LoggedInSelectors) || anyMatch(doc, genericLoggedInSelectors)
	return page
}

func anyMatch(doc *goquery.Document, selectors []string) bool {
	for _, s := range selectors {
		if strings.TrimSpace(s) == "" {
			continue
		}
		if doc.Find(s).Length() > 0 {
			return true
		}
	}
	return false
}
