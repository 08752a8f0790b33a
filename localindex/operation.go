package localindex

import (
	"bytes"
	"errors"

	"github.com/ridge/repoindex/kv"
)

// cursor is a pull-based stream of index entries. key is the index key of
// the entry: key and nodeKey together identify it.
type cursor interface {
	next() bool
	key() []byte
	nodeKey() string
	err() error
	close() error
}

// space is the ordered key space of an index
type space interface {
	converter() Converter
	scan(r kv.Range) (cursor, error)
}

// plan is a compiled constraint tree over a space
type plan interface {
	open(sp space) (cursor, error)
	// restrict narrows the plan to the keys within a range
	restrict(r kv.Range) plan
}

// rangePlan is a single ordered sub-view
type rangePlan struct {
	r kv.Range
}

func (p rangePlan) open(sp space) (cursor, error) {
	return sp.scan(p.r)
}

func (p rangePlan) restrict(r kv.Range) plan {
	nr := p.r.Intersect(r)
	if nr.Empty() {
		return nonePlan{}
	}
	return rangePlan{r: nr}
}

// unionPlan exhausts the left plan before opening the right one. Entries
// found by both are returned twice.
type unionPlan struct {
	left, right plan
}

func union(left, right plan) plan {
	if _, ok := left.(nonePlan); ok {
		return right
	}
	if _, ok := right.(nonePlan); ok {
		return left
	}
	return unionPlan{left: left, right: right}
}

func (p unionPlan) open(sp space) (cursor, error) {
	left, err := p.left.open(sp)
	if err != nil {
		return nil, err
	}
	return &unionCursor{sp: sp, cur: left, right: p.right}, nil
}

func (p unionPlan) restrict(r kv.Range) plan {
	return union(p.left.restrict(r), p.right.restrict(r))
}

// inPlan returns the entries of its parts without duplicates
type inPlan struct {
	parts []plan
}

func in(parts []plan) plan {
	var live []plan
	for _, p := range parts {
		if _, ok := p.(nonePlan); !ok {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return nonePlan{}
	}
	return inPlan{parts: live}
}

func (p inPlan) open(sp space) (cursor, error) {
	return &inCursor{sp: sp, parts: p.parts, cur: emptyCursor{}, seen: map[string]struct{}{}}, nil
}

func (p inPlan) restrict(r kv.Range) plan {
	parts := make([]plan, 0, len(p.parts))
	for _, part := range p.parts {
		parts = append(parts, part.restrict(r))
	}
	return in(parts)
}

// notInPlan returns the entries of base not returned by excluded. The
// excluded entries are collected when the plan is opened.
type notInPlan struct {
	base     plan
	excluded plan
}

func (p notInPlan) open(sp space) (cursor, error) {
	excluded := map[string]struct{}{}
	ex, err := p.excluded.open(sp)
	if err != nil {
		return nil, err
	}
	for ex.next() {
		excluded[identity(ex.key(), ex.nodeKey())] = struct{}{}
	}
	err = errors.Join(ex.err(), ex.close())
	if err != nil {
		return nil, err
	}
	base, err := p.base.open(sp)
	if err != nil {
		return nil, err
	}
	return &filterCursor{cursor: base, excluded: excluded}, nil
}

func (p notInPlan) restrict(r kv.Range) plan {
	base := p.base.restrict(r)
	if _, ok := base.(nonePlan); ok {
		return base
	}
	return notInPlan{base: base, excluded: p.excluded}
}

type nonePlan struct{}

func (nonePlan) open(space) (cursor, error) {
	return emptyCursor{}, nil
}

func (nonePlan) restrict(kv.Range) plan {
	return nonePlan{}
}

func identity(key []byte, nodeKey string) string {
	return string(key) + "\x00" + nodeKey
}

type emptyCursor struct{}

func (emptyCursor) next() bool      { return false }
func (emptyCursor) key() []byte     { return nil }
func (emptyCursor) nodeKey() string { return "" }
func (emptyCursor) err() error      { return nil }
func (emptyCursor) close() error    { return nil }

// mapCursor walks a collection whose values are node keys
type mapCursor struct {
	it kv.Iterator
}

func (c mapCursor) next() bool {
	return c.it.Next()
}

func (c mapCursor) key() []byte {
	return c.it.Key()
}

func (c mapCursor) nodeKey() string {
	return string(c.it.Value())
}

func (c mapCursor) err() error {
	return c.it.Err()
}

func (c mapCursor) close() error {
	return c.it.Close()
}

type unionCursor struct {
	sp    space
	cur   cursor
	right plan
	e     error
}

func (c *unionCursor) next() bool {
	for {
		if c.cur.next() {
			return true
		}
		if c.e = c.cur.err(); c.e != nil || c.right == nil {
			return false
		}
		if c.e = c.cur.close(); c.e != nil {
			return false
		}
		right := c.right
		c.right = nil
		c.cur = emptyCursor{}
		cur, err := right.open(c.sp)
		if err != nil {
			c.e = err
			return false
		}
		c.cur = cur
	}
}

func (c *unionCursor) key() []byte     { return c.cur.key() }
func (c *unionCursor) nodeKey() string { return c.cur.nodeKey() }
func (c *unionCursor) err() error      { return c.e }

func (c *unionCursor) close() error {
	c.right = nil
	return c.cur.close()
}

type inCursor struct {
	sp    space
	parts []plan
	cur   cursor
	seen  map[string]struct{}
	e     error
}

func (c *inCursor) next() bool {
	for {
		for c.cur.next() {
			id := identity(c.cur.key(), c.cur.nodeKey())
			if _, ok := c.seen[id]; ok {
				continue
			}
			c.seen[id] = struct{}{}
			return true
		}
		if c.e = errors.Join(c.cur.err(), c.cur.close()); c.e != nil {
			return false
		}
		c.cur = emptyCursor{}
		if len(c.parts) == 0 {
			return false
		}
		cur, err := c.parts[0].open(c.sp)
		c.parts = c.parts[1:]
		if err != nil {
			c.e = err
			return false
		}
		c.cur = cur
	}
}

func (c *inCursor) key() []byte     { return c.cur.key() }
func (c *inCursor) nodeKey() string { return c.cur.nodeKey() }
func (c *inCursor) err() error      { return c.e }

func (c *inCursor) close() error {
	c.parts = nil
	return c.cur.close()
}

type filterCursor struct {
	cursor
	excluded map[string]struct{}
}

func (c *filterCursor) next() bool {
	for c.cursor.next() {
		if _, ok := c.excluded[identity(c.cursor.key(), c.cursor.nodeKey())]; !ok {
			return true
		}
	}
	return false
}

// enumeratedCursor expands the entries of a values collection into the
// members of the collections they name
type enumeratedCursor struct {
	values  kv.Iterator
	open    func(collection string) (kv.Iterator, error)
	value   []byte
	members kv.Iterator
	e       error
}

func (c *enumeratedCursor) next() bool {
	for {
		if c.members != nil {
			if c.members.Next() {
				return true
			}
			c.e = errors.Join(c.members.Err(), c.members.Close())
			c.members = nil
			if c.e != nil {
				return false
			}
		}
		if !c.values.Next() {
			return false
		}
		c.value = bytes.Clone(c.values.Key())
		c.members, c.e = c.open(string(c.values.Value()))
		if c.e != nil {
			return false
		}
	}
}

func (c *enumeratedCursor) key() []byte {
	return c.value
}

func (c *enumeratedCursor) nodeKey() string {
	return string(c.members.Key())
}

func (c *enumeratedCursor) err() error {
	if c.e != nil {
		return c.e
	}
	return c.values.Err()
}

func (c *enumeratedCursor) close() error {
	var err error
	if c.members != nil {
		err = c.members.Close()
		c.members = nil
	}
	return errors.Join(err, c.values.Close())
}
