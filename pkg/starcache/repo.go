package starcache

import (
	"fmt"
	"strings"

	"github.com/matzehuels/starmark/pkg/errors"
)

// RepoID identifies a repository as owner/name.
type RepoID struct {
	Owner string
	Name  string
}

// ParseRepoID parses "owner/name". Surrounding whitespace is trimmed.
func ParseRepoID(s string) (RepoID, error) {
	s = strings.TrimSpace(s)
	if err := errors.ValidateRepoID(s); err != nil {
		return RepoID{}, err
	}
	owner, name, _ := strings.Cut(s, "/")
	return RepoID{Owner: owner, Name: name}, nil
}

// MustParseRepoID is like ParseRepoID but panics on error.
func MustParseRepoID(s string) RepoID {
	id, err := ParseRepoID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns "owner/name".
func (id RepoID) String() string {
	return id.Owner + "/" + id.Name
}

// IsZero reports whether id is unset.
func (id RepoID) IsZero() bool {
	return id.Owner == "" && id.Name == ""
}

// MarshalText implements encoding.TextMarshaler.
func (id RepoID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *RepoID) UnmarshalText(b []byte) error {
	parsed, err := ParseRepoID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Status is the user's tri-state verdict on a repository.
type Status string

const (
	StatusUnset     Status = "unset"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Statuses lists every status in cycle order.
var Statuses = []Status{StatusUnset, StatusConfirmed, StatusRejected}

// ParseStatus parses a status name. The empty string is unset.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusUnset:
		return StatusUnset, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", errors.New(errors.ErrCodeInvalidStatus, "invalid status %q (want unset, confirmed or rejected)", s)
}

// Valid reports whether s is one of the three statuses.
func (s Status) Valid() bool {
	return s == StatusUnset || s == StatusConfirmed || s == StatusRejected
}

// Next returns the status that follows s: unset, confirmed, rejected, unset.
func (s Status) Next() Status {
	switch s {
	case StatusUnset:
		return StatusConfirmed
	case StatusConfirmed:
		return StatusRejected
	default:
		return StatusUnset
	}
}

// Symbol is the glyph shown on the status control.
func (s Status) Symbol() string {
	switch s {
	case StatusConfirmed:
		return "✓"
	case StatusRejected:
		return "✗"
	default:
		return "○"
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == "" {
		return string(StatusUnset)
	}
	return string(s)
}

// Entry is one repository's record in the persistent tier.
type Entry struct {
	Stars     int    `json:"stars"`
	Status    Status `json:"status"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds of the last write
}

// String is used in log output.
func (e Entry) String() string {
	return fmt.Sprintf("%d stars, %s", e.Stars, e.Status)
}
