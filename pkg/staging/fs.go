package staging

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/scan"
)

// Mover performs the directory operations that other processes can block.
type Mover interface {
	Rename(oldpath, newpath string) error
	RemoveAll(path string) error
}

// OSMover uses the os package.
type OSMover struct{}

// Rename implements Mover.
func (OSMover) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// RemoveAll implements Mover.
func (OSMover) RemoveAll(path string) error { return os.RemoveAll(path) }

// IsLocked reports whether err means another process holds the files open.
func IsLocked(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EBUSY)
}

// writeFile writes data creating parent directories as needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// listing renders code;quantity pairs with a header.
func listing(pairs []scan.Pair) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = constants.CSVSeparator
	if err := w.Write([]string{"Code", "Quantity"}); err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := w.Write([]string{p.Code, strconv.FormatInt(p.Quantity, 10)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
