package annotate

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/matzehuels/starmark/pkg/dom"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// PrimaryLink returns the entry's first element child.
func PrimaryLink(entry *html.Node) *html.Node {
	return dom.FirstElementChild(entry)
}

// ExtractRepoID reads the identifier from the title of entry's primary link.
// Only the text before the first space is used, so a title such as
// "owner/name Some description" yields owner/name.
func ExtractRepoID(entry *html.Node) (starcache.RepoID, error) {
	link := PrimaryLink(entry)
	if link == nil {
		return starcache.RepoID{}, errors.New(errors.ErrCodeMalformedEntry, "entry has no primary link")
	}
	title, ok := dom.Attr(link, "title")
	if !ok || title == "" {
		return starcache.RepoID{}, errors.New(errors.ErrCodeMalformedEntry, "primary link has no title")
	}
	first, _, _ := strings.Cut(title, " ")
	id, err := starcache.ParseRepoID(first)
	if err != nil {
		return starcache.RepoID{}, errors.Wrap(errors.ErrCodeMalformedEntry, err, "title %q", title)
	}
	return id, nil
}
