package domain

// ClassPair is an ordered (presynaptic class, postsynaptic class) bucket key.
type ClassPair struct {
	Pre  string `json:"pre"`
	Post string `json:"post"`
}

// CellGroupTable maps each class to the set of cells matching it. Groups
// are independent and non-exclusive: a cell may appear in several groups
// or in none.
type CellGroupTable struct {
	classes []CellClass
	groups  map[string][]Cell
	members map[string]map[string]bool
}

// NewCellGroupTable builds an empty table over the ordered class list.
func NewCellGroupTable(classes []CellClass) CellGroupTable {
	t := CellGroupTable{
		classes: append([]CellClass(nil), classes...),
		groups:  make(map[string][]Cell, len(classes)),
		members: make(map[string]map[string]bool, len(classes)),
	}
	for _, class := range t.classes {
		key := class.Key()
		t.groups[key] = nil
		t.members[key] = make(map[string]bool)
	}
	return t
}

// Add records a cell in the class's group; duplicate cell IDs are ignored
// to keep group contents set-like.
func (t CellGroupTable) Add(class CellClass, cell Cell) {
	key := class.Key()
	if t.members[key] == nil || t.members[key][cell.ID] {
		return
	}
	t.members[key][cell.ID] = true
	t.groups[key] = append(t.groups[key], cell)
}

// Classes returns the ordered class list the table was built over.
func (t CellGroupTable) Classes() []CellClass {
	return append([]CellClass(nil), t.classes...)
}

// Cells returns the group for a class key.
func (t CellGroupTable) Cells(key string) []Cell {
	return t.groups[key]
}

// Contains reports whether the cell belongs to the class's group.
func (t CellGroupTable) Contains(key, cellID string) bool {
	return t.members[key] != nil && t.members[key][cellID]
}

// PairGroupTable buckets pairs by ordered (pre-class, post-class). A pair
// appears in every bucket whose endpoint groups contain its cells, so a
// multi-class cell contributes its pairs to multiple buckets.
type PairGroupTable struct {
	classes []CellClass
	buckets map[ClassPair][]Pair
}

// NewPairGroupTable builds a table holding the full ordered cross product
// of the class list, diagonal included, with every bucket initially empty.
func NewPairGroupTable(classes []CellClass) PairGroupTable {
	t := PairGroupTable{
		classes: append([]CellClass(nil), classes...),
		buckets: make(map[ClassPair][]Pair, len(classes)*len(classes)),
	}
	for _, pre := range t.classes {
		for _, post := range t.classes {
			t.buckets[ClassPair{Pre: pre.Key(), Post: post.Key()}] = nil
		}
	}
	return t
}

// Add appends a pair to the bucket for the given key.
func (t PairGroupTable) Add(key ClassPair, pair Pair) {
	t.buckets[key] = append(t.buckets[key], pair)
}

// Classes returns the ordered class list the table was built over.
func (t PairGroupTable) Classes() []CellClass {
	return append([]CellClass(nil), t.classes...)
}

// Pairs returns the bucket contents for an ordered class pair.
func (t PairGroupTable) Pairs(key ClassPair) []Pair {
	return t.buckets[key]
}

// Keys returns every bucket key in row-major class order.
func (t PairGroupTable) Keys() []ClassPair {
	keys := make([]ClassPair, 0, len(t.classes)*len(t.classes))
	for _, pre := range t.classes {
		for _, post := range t.classes {
			keys = append(keys, ClassPair{Pre: pre.Key(), Post: post.Key()})
		}
	}
	return keys
}
