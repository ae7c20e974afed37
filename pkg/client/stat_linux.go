//go:build linux

package client

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
)

// statToFileMeta builds a tentative FileMeta (hashes empty) from a
// lstat'd path, reading inode/uid/gid via info.Sys().(*syscall.Stat_t).
func statToFileMeta(host, path string, info os.FileInfo) filemeta.FileMeta {
	fm := filemeta.FileMeta{
		Host:  host,
		Path:  path,
		Name:  filepath.Base(path),
		Type:  fileType(info),
		Mode:  int32(info.Mode().Perm()),
		Size:  info.Size(),
		Mtime: info.ModTime().Unix(),
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		fm.UID = int32(stat.Uid)
		fm.GID = int32(stat.Gid)
		fm.Inode = int64(stat.Ino)
		fm.Atime = stat.Atim.Sec
		fm.Ctime = stat.Ctim.Sec
	}

	if fm.Type == filemeta.TypeSymlink {
		if target, err := os.Readlink(path); err == nil {
			fm.Link = target
		}
	}

	return fm
}

func fileType(info os.FileInfo) filemeta.Type {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return filemeta.TypeSymlink
	case info.IsDir():
		return filemeta.TypeDirectory
	case info.Mode().IsRegular():
		return filemeta.TypeRegular
	default:
		return filemeta.TypeOther
	}
}
