package backend

// Query selects FileMeta records for ListFiles. Filename, Owner, and Group
// are case-insensitive substring matches; BeforeMtime/AfterMtime bound the
// Unix-seconds Mtime field inclusively. A zero-value pointer field means
// "no filter". Multiple non-nil filters are AND-combined.
type Query struct {
	Host string

	Filename *string
	Owner    *string
	Group    *string

	BeforeMtime *int64
	AfterMtime  *int64

	LatestOnly bool
}
