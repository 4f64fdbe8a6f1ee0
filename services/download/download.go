package downloadsvc

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core/checkin"
)

// DirSaver saves downloads as files of a directory, created on first use.
type DirSaver struct {
	Dir string
}

var _ checkin.Downloader = (*DirSaver)(nil) // interface compliance check

func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{Dir: dir}
}

func (d *DirSaver) Save(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating download dir")
	}
	// never write outside of Dir
	path := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing "+path)
	}
	return nil
}
