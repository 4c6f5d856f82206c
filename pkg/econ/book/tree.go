package book

import "github.com/shopspring/decimal"

// priceLevel aggregates the active orders resting at one price. The orders
// form an intrusive FIFO list, so insertion order is time order. Quantity is
// the price bucket for this level: it always equals the sum of the resting
// orders' quantities.
type priceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal

	head, tail *Order
	count      int
}

func (pl *priceLevel) append(o *Order) {
	o.level = pl
	o.prev = pl.tail
	o.next = nil
	if pl.tail != nil {
		pl.tail.next = o
	} else {
		pl.head = o
	}
	pl.tail = o
	pl.count++
	pl.Quantity = pl.Quantity.Add(o.Quantity)
}

func (pl *priceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		pl.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		pl.tail = o.prev
	}
	o.level, o.next, o.prev = nil, nil, nil
	pl.count--
	pl.Quantity = pl.Quantity.Sub(o.Quantity)
	if pl.Quantity.IsNegative() {
		panic("book: price bucket went negative")
	}
}

type color uint8

const (
	red   color = 0
	black color = 1
)

type node struct {
	key    int64
	level  *priceLevel
	color  color
	left   *node
	right  *node
	parent *node
}

// levelTree is a red-black tree of price levels keyed by scaled price.
// Bids iterate descending (best first), asks ascending.
type levelTree struct {
	root   *node
	nil_   *node // black sentinel
	levels int
	orders int
	desc   bool
}

func newLevelTree(desc bool) *levelTree {
	sentinel := &node{color: black}
	return &levelTree{root: sentinel, nil_: sentinel, desc: desc}
}

// Orders returns the number of resting orders across all levels.
func (t *levelTree) Orders() int { return t.orders }

// Levels returns the number of occupied price levels.
func (t *levelTree) Levels() int { return t.levels }

// insert places o at the tail of its price level, creating the level lazily.
func (t *levelTree) insert(key int64, o *Order) {
	pl := t.upsertLevel(key, o.Price)
	pl.append(o)
	t.orders++
}

// remove unlinks o from its level, deleting the level when it empties.
func (t *levelTree) remove(key int64, o *Order) {
	pl := o.level
	if pl == nil {
		panic("book: removing an order that is not in the tree")
	}
	pl.unlink(o)
	t.orders--
	if pl.count == 0 {
		t.deleteLevel(key)
	}
}

// front returns the highest-priority order: the oldest order at the best
// price (max level for bids, min for asks). Nil when empty.
func (t *levelTree) front() *Order {
	var n *node
	if t.desc {
		n = t.maxNode(t.root)
	} else {
		n = t.minNode(t.root)
	}
	if n == t.nil_ {
		return nil
	}
	return n.level.head
}

// eachLevel walks levels best-first, stopping when fn returns false.
func (t *levelTree) eachLevel(fn func(*priceLevel) bool) {
	if t.desc {
		for n := t.maxNode(t.root); n != t.nil_; n = t.prev(n) {
			if !fn(n.level) {
				return
			}
		}
		return
	}
	for n := t.minNode(t.root); n != t.nil_; n = t.next(n) {
		if !fn(n.level) {
			return
		}
	}
}

// eachOrder walks orders in priority order (best level first, FIFO within).
func (t *levelTree) eachOrder(fn func(*Order) bool) {
	t.eachLevel(func(pl *priceLevel) bool {
		for o := pl.head; o != nil; o = o.next {
			if !fn(o) {
				return false
			}
		}
		return true
	})
}

func (t *levelTree) findLevel(key int64) *priceLevel {
	n := t.root
	for n != t.nil_ {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n.level
		}
	}
	return nil
}

func (t *levelTree) upsertLevel(key int64, price decimal.Decimal) *priceLevel {
	y := t.nil_
	x := t.root
	for x != t.nil_ {
		y = x
		if key < x.key {
			x = x.left
		} else if key > x.key {
			x = x.right
		} else {
			return x.level
		}
	}
	pl := &priceLevel{Price: price}
	z := &node{key: key, level: pl, color: red, left: t.nil_, right: t.nil_, parent: y}
	if y == t.nil_ {
		t.root = z
	} else if z.key < y.key {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.levels++
	return pl
}

func (t *levelTree) deleteLevel(key int64) {
	z := t.searchNode(key)
	if z == t.nil_ {
		panic("book: deleting a price level that does not exist")
	}
	t.deleteNode(z)
	t.levels--
}

func (t *levelTree) searchNode(key int64) *node {
	n := t.root
	for n != t.nil_ {
		if key < n.key {
			n = n.left
		} else if key > n.key {
			n = n.right
		} else {
			return n
		}
	}
	return t.nil_
}

func (t *levelTree) minNode(n *node) *node {
	if n == t.nil_ {
		return t.nil_
	}
	for n.left != t.nil_ {
		n = n.left
	}
	return n
}

func (t *levelTree) maxNode(n *node) *node {
	if n == t.nil_ {
		return t.nil_
	}
	for n.right != t.nil_ {
		n = n.right
	}
	return n
}

func (t *levelTree) next(n *node) *node {
	if n.right != t.nil_ {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil_ && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *levelTree) prev(n *node) *node {
	if n.left != t.nil_ {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil_ && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *levelTree) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil_ {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil_ {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *levelTree) rightRotate(y *node) {
	x := y.left
	y.left = x.right
	if x.right != t.nil_ {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil_ {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *levelTree) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *levelTree) transplant(u, v *node) {
	if u.parent == t.nil_ {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *levelTree) deleteNode(z *node) {
	y := z
	yOrigColor := y.color
	var x *node

	if z.left == t.nil_ {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil_ {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *levelTree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}
