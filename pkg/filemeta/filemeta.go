// Package filemeta defines the per-version file record that a backup client
// ships to the server, and the comparison/ordering rules a backend needs to
// answer "latest version" queries.
package filemeta

import "github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"

// Type enumerates the filesystem object kinds a FileMeta can describe.
type Type int32

const (
	TypeRegular Type = iota
	TypeDirectory
	TypeSymlink
	TypeOther
)

// FileMeta describes one version of one filesystem object on one host.
// Identity is the tuple (Host, Path, Type, UID, GID, Atime, Ctime, Mtime,
// Mode); two records with equal identity fields are considered the same
// version for dedup-of-metadata purposes (the backend itself never dedupes
// records — see Equal).
type FileMeta struct {
	Host  string
	Path  string
	Name  string
	Type  Type
	Mode  int32
	UID   int32
	GID   int32
	Owner string
	Group string

	Inode int64
	Size  int64

	Atime int64
	Ctime int64
	Mtime int64

	Link string

	Hashes []hashchunk.Hash
}

// Equal reports whether two FileMeta values share the same identity, per
// the tuple (Host, Path, Type, UID, GID, Atime, Ctime, Mtime, Mode). It does
// not compare Hashes, Size, or the descriptive fields (Name, Owner, Group,
// Link, Inode) — those may legitimately differ between two records
// considered the same version.
func (f FileMeta) Equal(other FileMeta) bool {
	return f.Host == other.Host &&
		f.Path == other.Path &&
		f.Type == other.Type &&
		f.UID == other.UID &&
		f.GID == other.GID &&
		f.Atime == other.Atime &&
		f.Ctime == other.Ctime &&
		f.Mtime == other.Mtime &&
		f.Mode == other.Mode
}

// Less orders FileMeta for "latest-only" reduction: by Mtime descending,
// ties broken by Ctime descending, then by insertion order (callers sort
// with a stable sort and rely on that tie-break falling out naturally).
func Less(a, b FileMeta) bool {
	if a.Mtime != b.Mtime {
		return a.Mtime > b.Mtime
	}
	return a.Ctime > b.Ctime
}

// identityKey is the (path, type) tuple latest-only reduction groups by.
type identityKey struct {
	Path string
	Type Type
}

// LatestOnly reduces a Mtime-descending-sorted slice of records to at most
// one per distinct (Path, Type), keeping the first (newest) occurrence of
// each. Callers must sort with Less (or an equivalent stable ordering)
// before calling LatestOnly; it does not sort internally since backends may
// already produce mtime-descending order from their query engine.
func LatestOnly(records []FileMeta) []FileMeta {
	seen := make(map[identityKey]struct{}, len(records))
	out := make([]FileMeta, 0, len(records))
	for _, r := range records {
		key := identityKey{Path: r.Path, Type: r.Type}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
