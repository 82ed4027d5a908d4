package message

import (
	"errors"
	"strings"
)

// Names of the abstraction layers that appear in routing paths.
const (
	LayerApp  = "app"
	LayerNNAR = "nnar"
	LayerBEB  = "beb"
	LayerPL   = "pl"
)

var ErrInvalidPath = errors.New("message: invalid abstraction path")

// Segment is one element of an abstraction path, e.g. "nnar[x]" is the segment
// {Name: "nnar", Key: "x", Keyed: true}.
type Segment struct {
	Name  string
	Key   string
	Keyed bool
}

func (s Segment) String() string {
	if !s.Keyed {
		return s.Name
	}
	return s.Name + "[" + s.Key + "]"
}

// Path is a parsed abstraction id such as "app.nnar[x].beb.pl". The zero value
// is the empty path.
type Path []Segment

// ParsePath splits an abstraction id into segments. Dots inside brackets are
// part of the key.
func ParsePath(id string) (Path, error) {
	if id == "" {
		return nil, nil
	}

	var (
		path  Path
		start int
		depth int
	)
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, ErrInvalidPath
			}
		case '.':
			if depth > 0 {
				continue
			}
			seg, err := parseSegment(id[start:i])
			if err != nil {
				return nil, err
			}
			path = append(path, seg)
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, ErrInvalidPath
	}
	seg, err := parseSegment(id[start:])
	if err != nil {
		return nil, err
	}
	return append(path, seg), nil
}

func parseSegment(s string) (Segment, error) {
	if s == "" {
		return Segment{}, ErrInvalidPath
	}
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return Segment{Name: s}, nil
	}
	if open == 0 || s[len(s)-1] != ']' {
		return Segment{}, ErrInvalidPath
	}
	return Segment{Name: s[:open], Key: s[open+1 : len(s)-1], Keyed: true}, nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Append returns a new path with an unkeyed segment added at the end.
func (p Path) Append(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Name: name})
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the last segment, or the zero Segment for the empty path.
func (p Path) Last() Segment {
	if len(p) == 0 {
		return Segment{}
	}
	return p[len(p)-1]
}

// Register returns the key of the last keyed segment, which names the register
// a message is addressed to.
func (p Path) Register() (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Keyed {
			return p[i].Key, true
		}
	}
	return "", false
}

// IsBebDelivery reports whether a perfect-link delivery on this path was sent
// by the broadcast layer, i.e. the path ends in "beb.pl".
func (p Path) IsBebDelivery() bool {
	return p.Last().Name == LayerPL && p.Parent().Last().Name == LayerBEB
}

// RegisterPath returns the abstraction id of the named register.
func RegisterPath(name string) string {
	return Path{{Name: LayerApp}, {Name: LayerNNAR, Key: name, Keyed: true}}.String()
}

// WithLayer appends a layer name to a dotted abstraction id.
func WithLayer(id, layer string) string {
	if id == "" {
		return layer
	}
	return id + "." + layer
}
