package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CreateFile creates a file at the given path/fileName combination. If path is empty, the file is created in the
// current working directory. Any missing parent directories are created along the way.
func CreateFile(path string, fileName string) (*os.File, error) {
	filePath := fileName
	if path != "" {
		if err := MakeDirectory(path); err != nil {
			return nil, err
		}
		filePath = filepath.Join(path, fileName)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return file, nil
}

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
func MakeDirectory(dirToMake string) error {
	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithStack(os.MkdirAll(dirToMake, 0777))
		}
		return errors.WithStack(err)
	}
	if !dirInfo.IsDir() {
		return fmt.Errorf("there is a file with the same name as directory %q", dirToMake)
	}
	return nil
}
