package models

// Context is the accumulated key/value state threaded through the nodes of a run.
// Values must be JSON-serializable.
type Context map[string]any

// Clone returns a copy of c. Executors receive clones so a node never observes
// writes made by a later node.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}

	return out
}

// With returns a copy of c with key set to value. An existing key is overwritten.
func (c Context) With(key string, value any) Context {
	out := c.Clone()
	out[key] = value

	return out
}
