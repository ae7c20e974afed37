package filemeta

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual_IdentityFieldsOnly(t *testing.T) {
	base := FileMeta{Host: "hostA", Path: "/a.txt", Type: TypeRegular, UID: 1, GID: 1, Atime: 1, Ctime: 1, Mtime: 1, Mode: 0644}
	diffName := base
	diffName.Name = "renamed-in-display-only"
	assert.True(t, base.Equal(diffName))

	diffMtime := base
	diffMtime.Mtime = 2
	assert.False(t, base.Equal(diffMtime))
}

func TestLatestOnly_KeepsNewestPerPathType(t *testing.T) {
	records := []FileMeta{
		{Path: "/a.txt", Type: TypeRegular, Mtime: 1672531200}, // 2023-01-01
		{Path: "/a.txt", Type: TypeRegular, Mtime: 1671062400}, // 2022-12-15
		{Path: "/a.txt", Type: TypeRegular, Mtime: 1654041600}, // 2022-06-01
	}
	sort.SliceStable(records, func(i, j int) bool { return Less(records[i], records[j]) })
	latest := LatestOnly(records)
	if assert.Len(t, latest, 1) {
		assert.Equal(t, int64(1672531200), latest[0].Mtime)
	}
}

func TestLatestOnly_DistinctPathsKeepOneEach(t *testing.T) {
	records := []FileMeta{
		{Path: "/a.txt", Type: TypeRegular, Mtime: 100},
		{Path: "/b.txt", Type: TypeRegular, Mtime: 50},
	}
	sort.SliceStable(records, func(i, j int) bool { return Less(records[i], records[j]) })
	latest := LatestOnly(records)
	assert.Len(t, latest, 2)
}
