package toolgen

// Registry maps tool names to their entries. It is immutable after
// Build; a specification reload builds a whole new Registry which the
// server swaps in atomically.
type Registry struct {
	entries  map[string]*Entry
	order    []string
	Warnings []string
}

// Get resolves a tool name
func (r *Registry) Get(name string) (*Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Tools returns descriptors in synthesis order
func (r *Registry) Tools() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].Tool)
	}
	return tools
}

// Len reports the number of registered tools
func (r *Registry) Len() int {
	return len(r.order)
}
