// Package vfs implements the canonical path grammar and typed location
// model (VirtualPath, VfsNode) that spans remote object listings and
// in-container archive entries.
package vfs

import "strings"

const Separator = "/"

// Path is an ordered sequence of non-empty segments plus a flag recording
// whether the textual form ended in a trailing separator ("directory
// intent"). After normalization no segment equals ".", "..", or "".
type Path struct {
	segments  []string
	absolute  bool
	trailing  bool
}

// Root is the empty absolute path.
func Root() Path { return Path{absolute: true} }

// Parse normalizes text into a Path. Leading "/" marks it absolute;
// trailing "/" sets the directory-intent flag; "." segments are dropped;
// ".." pops the previous segment (no-op if there is none to pop).
func Parse(text string) Path {
	p := Path{}
	if strings.HasPrefix(text, Separator) {
		p.absolute = true
		text = strings.TrimPrefix(text, Separator)
	}
	if text == "" {
		return p
	}
	p.trailing = strings.HasSuffix(text, Separator)
	for _, seg := range strings.Split(text, Separator) {
		p.pushRaw(seg)
	}
	return p
}

// FromSegments builds a Path directly from already-normalized segments.
func FromSegments(absolute bool, segs ...string) Path {
	p := Path{absolute: absolute}
	for _, s := range segs {
		p.pushRaw(s)
	}
	return p
}

func (p *Path) pushRaw(seg string) {
	switch seg {
	case "", ".":
		// dropped
	case "..":
		p.pop()
	default:
		p.segments = append(p.segments, seg)
	}
}

// Join resolves text against base. Absolute text replaces base entirely;
// relative text appends to and normalizes against base.
func Join(base Path, text string) Path {
	if strings.HasPrefix(text, Separator) {
		return Parse(text)
	}
	out := base
	out.segments = append([]string(nil), base.segments...)
	out.trailing = strings.HasSuffix(text, Separator)
	if text == "" {
		return out
	}
	for _, seg := range strings.Split(text, Separator) {
		out.pushRaw(seg)
	}
	return out
}

// Push appends a single already-normalized segment.
func (p Path) Push(seg string) Path {
	out := p
	out.segments = append(append([]string(nil), p.segments...), seg)
	out.trailing = false
	return out
}

// Pop removes the last segment, if any.
func (p Path) Pop() Path {
	out := p
	out.pop()
	return out
}

func (p *Path) pop() {
	if len(p.segments) == 0 {
		return
	}
	p.segments = p.segments[:len(p.segments)-1]
}

// Parent returns the path with its last segment removed.
func (p Path) Parent() Path { return p.Pop() }

// Filename returns the last segment, or "" for the root.
func (p Path) Filename() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Segments returns a copy of the normalized segment list.
func (p Path) Segments() []string { return append([]string(nil), p.segments...) }

// IsRoot reports whether the path has zero segments.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// IsAbsolute reports whether the path was parsed from a leading "/".
func (p Path) IsAbsolute() bool { return p.absolute }

// HasTrailingSlash reports the preserved directory-intent flag.
func (p Path) HasTrailingSlash() bool { return p.trailing }

// WithTrailingSlash returns a copy with the directory-intent flag set.
func (p Path) WithTrailingSlash() Path {
	out := p
	out.trailing = true
	return out
}

// String renders the display form: "/" for root, else the joined segments,
// with a leading "/" iff absolute and a trailing "/" iff HasTrailingSlash.
func (p Path) String() string {
	var b strings.Builder
	if p.absolute {
		b.WriteString(Separator)
	}
	b.WriteString(strings.Join(p.segments, Separator))
	if p.trailing && len(p.segments) > 0 {
		b.WriteString(Separator)
	}
	return b.String()
}

// Interior renders the path as an in-archive entry path: no leading
// separator, trailing separator iff HasTrailingSlash.
func (p Path) Interior() string {
	s := strings.Join(p.segments, Separator)
	if p.trailing && s != "" {
		s += Separator
	}
	return s
}
