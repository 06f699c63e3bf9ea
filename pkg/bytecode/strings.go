package bytecode

// StringObject is the only heap object the VM knows. Instances are created
// through an InternTable, so equal contents share one object.
type StringObject struct {
	Chars string
}

// InternTable deduplicates strings. One table is shared by the compiler,
// which seeds it with literals and global names, and the VM, which adds
// strings built at runtime.
type InternTable struct {
	strings map[string]*StringObject
}

// NewInternTable creates an empty table.
func NewInternTable() *InternTable {
	return &InternTable{strings: make(map[string]*StringObject)}
}

// Intern returns the shared object for s, creating it on first use.
func (t *InternTable) Intern(s string) *StringObject {
	if obj, ok := t.strings[s]; ok {
		return obj
	}
	obj := &StringObject{Chars: s}
	t.strings[s] = obj
	return obj
}

// Lookup returns the object for s without creating one.
func (t *InternTable) Lookup(s string) (*StringObject, bool) {
	obj, ok := t.strings[s]
	return obj, ok
}

// Len returns the number of distinct strings interned.
func (t *InternTable) Len() int {
	return len(t.strings)
}
