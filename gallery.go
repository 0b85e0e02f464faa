package fingerprint

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Gallery holds enrolled templates keyed by identity in enrollment order.
// Scans visit templates in that order. It is not safe for concurrent writes.
type Gallery struct {
	templates *linkedhashmap.Map
}

func NewGallery(templates ...*Template) *Gallery {
	g := &Gallery{templates: linkedhashmap.New()}
	for _, t := range templates {
		g.Add(t)
	}
	return g
}

// Add stores t under its identity. Replacing an identity keeps its position.
func (g *Gallery) Add(t *Template) {
	g.templates.Put(t.Identity, t)
}

func (g *Gallery) Get(identity string) (*Template, bool) {
	v, ok := g.templates.Get(identity)
	if !ok {
		return nil, false
	}
	return v.(*Template), true
}

func (g *Gallery) Remove(identity string) {
	g.templates.Remove(identity)
}

func (g *Gallery) Len() int {
	return g.templates.Size()
}

func (g *Gallery) Templates() []*Template {
	out := make([]*Template, 0, g.templates.Size())
	it := g.templates.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Template))
	}
	return out
}
