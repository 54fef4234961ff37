package annotate

import (
	"context"
	"strconv"

	"golang.org/x/net/html"

	"github.com/matzehuels/starmark/pkg/dom"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// Class names and attributes written into the page.
const (
	AnnotationClass = "starmark-annotation"
	BadgeClass      = "github-star-counter"
	ControlClass    = "starmark-status"

	AttrRepo   = "data-repo"
	AttrStars  = "data-stars"
	AttrStatus = "data-status"
)

var statusColors = map[starcache.Status]string{
	starcache.StatusUnset:     "#6e7781",
	starcache.StatusConfirmed: "#1a7f37",
	starcache.StatusRejected:  "#cf222e",
}

var (
	markerSel  = dom.MustCompile("." + AnnotationClass + ", ." + BadgeClass)
	controlSel = dom.MustCompile("button." + ControlClass)
	annotSel   = dom.MustCompile("span." + AnnotationClass)
)

// BadgeText formats a star count for display.
func BadgeText(stars int) string {
	return "⭐ " + strconv.Itoa(stars)
}

func newComposite(id starcache.RepoID, stars int, status starcache.Status) *html.Node {
	wrap := dom.Element("span",
		"class", AnnotationClass,
		AttrRepo, id.String(),
		AttrStars, strconv.Itoa(stars),
	)

	badge := dom.Element("span", "class", BadgeClass, "style", "margin-left: 8px")
	badge.AppendChild(dom.Text(BadgeText(stars)))
	wrap.AppendChild(badge)

	button := dom.Element("button",
		"type", "button",
		"class", ControlClass,
		AttrRepo, id.String(),
		AttrStatus, status.String(),
		"title", status.String(),
		"style", controlStyle(status),
	)
	button.AppendChild(dom.Text(status.Symbol()))
	wrap.AppendChild(button)
	return wrap
}

// StatusColor is the text color of a control showing s.
func StatusColor(s starcache.Status) string {
	return statusColors[s]
}

func controlStyle(s starcache.Status) string {
	return "margin-left: 4px; border: none; background: none; cursor: pointer; color: " + StatusColor(s)
}

// restyle updates control to show s. It only touches the document.
func restyle(doc *dom.Document, control *html.Node, s starcache.Status) {
	doc.SetAttr(control, AttrStatus, s.String())
	doc.SetAttr(control, "title", s.String())
	doc.SetAttr(control, "style", controlStyle(s))
	doc.SetText(control, s.Symbol())
}

// Annotated describes one annotated entry as it appears in the document.
type Annotated struct {
	Repo   starcache.RepoID `json:"repo"`
	Stars  int              `json:"stars"`
	Status starcache.Status `json:"status"`
}

// Entries lists the annotated entries of doc in document order.
func Entries(doc *dom.Document) []Annotated {
	var out []Annotated
	for _, n := range doc.QueryAll(annotSel) {
		raw, _ := dom.Attr(n, AttrRepo)
		id, err := starcache.ParseRepoID(raw)
		if err != nil {
			continue
		}
		stars, _ := dom.Attr(n, AttrStars)
		a := Annotated{Repo: id, Status: starcache.StatusUnset}
		a.Stars, _ = strconv.Atoi(stars)
		if c := controlSel.First(n); c != nil {
			v, _ := dom.Attr(c, AttrStatus)
			if s, err := starcache.ParseStatus(v); err == nil {
				a.Status = s
			}
		}
		out = append(out, a)
	}
	return out
}

// FindControl returns the first status control for id, or nil.
func FindControl(doc *dom.Document, id starcache.RepoID) *html.Node {
	for _, c := range doc.QueryAll(controlSel) {
		if v, _ := dom.Attr(c, AttrRepo); v == id.String() {
			return c
		}
	}
	return nil
}

// Activate advances the status shown by control, restyles it immediately and
// then persists the new status. The control keeps its new state even when
// persisting fails; the error is logged and returned.
func (a *Annotator) Activate(ctx context.Context, doc *dom.Document, control *html.Node) (starcache.Status, error) {
	if !controlSel.Match(control) {
		return "", errors.New(errors.ErrCodeInvalidInput, "node is not a status control")
	}
	raw, _ := dom.Attr(control, AttrRepo)
	id, err := starcache.ParseRepoID(raw)
	if err != nil {
		return "", err
	}
	cur, err := starcache.ParseStatus(attrOr(control, AttrStatus, ""))
	if err != nil {
		cur = starcache.StatusUnset
	}
	next := cur.Next()

	restyle(doc, control, next)

	if err := a.cache.SetStatus(ctx, id, next); err != nil {
		a.logger.Warn("persist status", "repo", id, "status", next, "err", err)
		return next, err
	}
	a.logger.Debug("status changed", "repo", id, "from", cur, "to", next)
	return next, nil
}

// ActivateRepo activates the first control for id.
func (a *Annotator) ActivateRepo(ctx context.Context, doc *dom.Document, id starcache.RepoID) (starcache.Status, error) {
	control := FindControl(doc, id)
	if control == nil {
		return "", errors.New(errors.ErrCodeNotFound, "no status control for %s", id)
	}
	return a.Activate(ctx, doc, control)
}

func attrOr(n *html.Node, key, def string) string {
	if v, ok := dom.Attr(n, key); ok {
		return v
	}
	return def
}
