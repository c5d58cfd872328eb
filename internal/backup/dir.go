package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/filex"
)

// DirRemote keeps blobs as files in a local directory, for example a mounted
// cloud drive.
type DirRemote struct {
	dir string
}

func NewDirRemote(dir string) *DirRemote {
	return &DirRemote{dir: dir}
}

func (d *DirRemote) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: bad backup name %q", common.ErrValidation, name)
	}
	return filepath.Join(d.dir, name), nil
}

// Put replaces name atomically with a 0600 file.
func (d *DirRemote) Put(_ context.Context, name string, data []byte) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(p, data)
}

func (d *DirRemote) Get(_ context.Context, name string) ([]byte, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, common.ErrNotFound
	}
	return data, err
}

func (d *DirRemote) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
