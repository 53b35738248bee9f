package saver

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// replaceFile renders the content in memory and swaps it in with a temp file
// and rename, so readers see either the old or the new content. The rename
// uses MoveFileEx on Windows, where the terminal usually runs.
func replaceFile(path string, write func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return err
	}
	return os.Chmod(path, 0644)
}

// appendFile appends data with a single write. It returns fs.ErrNotExist when
// path is missing so callers can fall back to a full write.
func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
