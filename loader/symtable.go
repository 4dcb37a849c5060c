package loader

import (
	"fmt"
	"strconv"
)

// Symbol is one entry of a SymbolTable: a name paired with both its raw
// string form (symbols like "stdin"/"stdout" carry no meaningful
// integer value) and its parsed integer value.
type Symbol struct {
	Name     string
	Value    int32
	ValueStr string
}

// SymbolTable is an ordered, name-indexed set of symbols. Lookups are
// by name; Symbols/Dump report them in insertion order, which is the
// order they appear in the source b91 file.
type SymbolTable struct {
	order []string
	byName map[string]Symbol
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: map[string]Symbol{}}
}

// Insert adds or replaces the symbol name with the given string value,
// parsing it as a decimal integer if possible (value_str-only symbols
// such as "stdin"/"stdout" simply get Value 0).
func (t *SymbolTable) Insert(name, value string) {
	v, _ := strconv.Atoi(value)
	if _, exists := t.byName[name]; !exists {
		t.order = append(t.order, name)
	}
	t.byName[name] = Symbol{Name: name, Value: int32(v), ValueStr: value}
}

// Lookup returns the integer value of name and whether it exists.
func (t *SymbolTable) Lookup(name string) (int32, bool) {
	s, ok := t.byName[name]
	return s.Value, ok
}

// LookupStr returns the raw string value of name and whether it exists.
func (t *SymbolTable) LookupStr(name string) (string, bool) {
	s, ok := t.byName[name]
	return s.ValueStr, ok
}

// Symbols returns all symbols in insertion order.
func (t *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Dump renders the table as "name = value" lines, one per symbol.
func (t *SymbolTable) Dump() string {
	out := "Symbol table:\n"
	for _, s := range t.Symbols() {
		out += fmt.Sprintf("%s = %s\n", s.Name, s.ValueStr)
	}
	return out
}
