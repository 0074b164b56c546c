package permission

// Key is the canonical identity of a tracked capability. It is a
// comparable value used directly as a map key: capabilities of the
// same kind with equal qualifiers share a key, a kind-wide capability
// (empty qualifier) never collides with a qualified one, and kinds
// never collide with each other.
type Key struct {
	Name      Name
	Qualifier string
}

// String renders the key for logs and journal rows. Identity never
// depends on the rendering.
func (k Key) String() string {
	if k.Qualifier == "" {
		return string(k.Name)
	}
	return string(k.Name) + ":" + k.Qualifier
}
