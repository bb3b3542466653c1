package w3cdid

import (
	"net/url"
	"strings"
)

type URL string

func (u URL) Scheme() string {
	return "did"
}

func (u URL) Method() string {
	uri, _ := url.Parse(string(u))
	p := strings.SplitN(uri.Opaque, ":", 2)
	return p[0]
}

func (u URL) Id() string {
	uri, _ := url.Parse(string(u))
	p := strings.SplitN(uri.Opaque, ":", 2)
	if len(p) < 2 {
		return ""
	}

	return p[1]
}

// Numalgo returns the peer method numalgo rune ("2" or "4" for the methods
// supported here), the first character of the method-specific id
func (u URL) Numalgo() string {
	id := u.Id()
	if id == "" {
		return ""
	}

	return id[:1]
}

// Base strips any query and fragment, leaving the bare identifier
func (u URL) Base() string {
	s := string(u)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	return s
}

func (u URL) Query() string {
	uri, _ := url.Parse(string(u))
	return uri.RawQuery
}

func (u URL) Fragment() string {
	uri, _ := url.Parse(string(u))
	return uri.Fragment
}
