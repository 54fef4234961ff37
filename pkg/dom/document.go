package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/matzehuels/starmark/pkg/errors"
)

// RecordType distinguishes child-list changes from attribute changes.
type RecordType int

const (
	ChildList RecordType = iota
	Attributes
)

// Record describes one mutation.
type Record struct {
	Type      RecordType
	Target    *html.Node   // parent for ChildList, element for Attributes
	Added     []*html.Node // ChildList only
	Removed   []*html.Node // ChildList only
	Attribute string       // Attributes only
	OldValue  string       // Attributes only
}

// Callback receives one batch of records per Flush.
type Callback func(records []Record)

// Observation is a registered observer. Disconnect stops delivery.
type Observation struct {
	doc        *Document
	root       *html.Node
	fn         Callback
	attributes bool
}

// Disconnect unregisters o. Records already pending are discarded for o.
func (o *Observation) Disconnect() {
	if o == nil || o.doc == nil {
		return
	}
	d := o.doc
	for i, obs := range d.observers {
		if obs == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
	o.doc = nil
}

// ObserveOptions selects which records an observer receives. Child-list
// records are always delivered.
type ObserveOptions struct {
	Attributes bool
}

// Document is a mutable HTML document.
type Document struct {
	root      *html.Node
	pending   []Record
	observers []*Observation
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse html")
	}
	return &Document{root: root}, nil
}

// ParseString parses s as an HTML document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// HTML returns the <html> element, or nil.
func (d *Document) HTML() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Query returns the first element in the document matching sel.
func (d *Document) Query(sel Selector) *html.Node {
	return sel.First(d.root)
}

// QueryAll returns every element in the document matching sel.
func (d *Document) QueryAll(sel Selector) []*html.Node {
	return sel.All(d.root)
}

// ParseFragment parses s in the context of parent. The returned nodes are
// detached.
func (d *Document) ParseFragment(parent *html.Node, s string) ([]*html.Node, error) {
	ctx := parent
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = Element("body")
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse fragment")
	}
	return nodes, nil
}

// AppendChild appends a detached node n to parent.
func (d *Document) AppendChild(parent, n *html.Node) {
	detach(n)
	parent.AppendChild(n)
	d.record(Record{Type: ChildList, Target: parent, Added: []*html.Node{n}})
}

// InsertAfter inserts a detached node n immediately after ref.
func (d *Document) InsertAfter(ref, n *html.Node) error {
	parent := ref.Parent
	if parent == nil {
		return errors.New(errors.ErrCodeInvalidDocument, "reference node has no parent")
	}
	detach(n)
	parent.InsertBefore(n, ref.NextSibling)
	d.record(Record{Type: ChildList, Target: parent, Added: []*html.Node{n}})
	return nil
}

// RemoveChild detaches n from its parent.
func (d *Document) RemoveChild(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	d.record(Record{Type: ChildList, Target: parent, Removed: []*html.Node{n}})
}

// ReplaceChildren removes every child of parent and appends nodes, producing
// a single record.
func (d *Document) ReplaceChildren(parent *html.Node, nodes ...*html.Node) {
	var removed []*html.Node
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, n := range nodes {
		detach(n)
		parent.AppendChild(n)
	}
	d.record(Record{Type: ChildList, Target: parent, Added: nodes, Removed: removed})
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *html.Node, s string) {
	d.ReplaceChildren(n, Text(s))
}

// SetAttr sets attribute key on n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	old, existed := setAttr(n, key, val)
	if existed && old == val {
		return
	}
	d.record(Record{Type: Attributes, Target: n, Attribute: key, OldValue: old})
}

// Observe registers fn for mutations under root (root included).
func (d *Document) Observe(root *html.Node, opts ObserveOptions, fn Callback) *Observation {
	o := &Observation{doc: d, root: root, fn: fn, attributes: opts.Attributes}
	d.observers = append(d.observers, o)
	return o
}

// Pending reports the number of undelivered records.
func (d *Document) Pending() int { return len(d.pending) }

// Flush delivers pending records. Each observer receives at most one batch
// holding the records under its root. Records produced by callbacks are kept
// for the next Flush.
func (d *Document) Flush() {
	if len(d.pending) == 0 {
		return
	}
	records := d.pending
	d.pending = nil

	observers := append([]*Observation(nil), d.observers...)
	for _, o := range observers {
		if o.doc == nil {
			continue
		}
		var batch []Record
		for _, r := range records {
			if r.Type == Attributes && !o.attributes {
				continue
			}
			if Contains(o.root, r.Target) {
				batch = append(batch, r)
			}
		}
		if len(batch) > 0 {
			o.fn(batch)
		}
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// RenderNode renders n and its subtree.
func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

func (d *Document) record(r Record) {
	d.pending = append(d.pending, r)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
