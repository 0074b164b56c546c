package permission

// Name identifies a capability kind a sandboxed plugin can hold.
type Name string

const (
	// NameRead covers reading files and directories.
	NameRead Name = "read"
	// NameWrite covers writing files and directories.
	NameWrite Name = "write"
	// NameFfi covers loading native shared libraries.
	NameFfi Name = "ffi"
	// NameNet covers outbound network access.
	NameNet Name = "net"
	// NameRun covers spawning subprocesses.
	NameRun Name = "run"
	// NameEnv covers reading environment variables.
	NameEnv Name = "env"
	// NameSys covers querying system interfaces (hostname, OS release, ...).
	NameSys Name = "sys"
	// NameHrtime covers high-resolution time measurement. It takes no
	// qualifier; without it, timestamps are coarsened.
	NameHrtime Name = "hrtime"
)

// Names returns every capability kind in canonical order.
func Names() []Name {
	return []Name{NameRead, NameWrite, NameFfi, NameNet, NameRun, NameEnv, NameSys, NameHrtime}
}

// Valid reports whether n is a known capability kind.
func (n Name) Valid() bool {
	switch n {
	case NameRead, NameWrite, NameFfi, NameNet, NameRun, NameEnv, NameSys, NameHrtime:
		return true
	default:
		return false
	}
}

// String returns the kind tag.
func (n Name) String() string {
	return string(n)
}
