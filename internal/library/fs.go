package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemKind classifies a FilesystemError
type FilesystemKind string

const (
	KindSourceInaccessible FilesystemKind = "source_inaccessible"
	KindLinkFailed         FilesystemKind = "link_failed"
	KindCopyFailed         FilesystemKind = "copy_failed"
	KindInvalidPath        FilesystemKind = "invalid_path"
)

// FilesystemError is returned when a file cannot be placed in the library
type FilesystemError struct {
	Kind FilesystemKind
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Is matches any FilesystemError of the same kind
func (e *FilesystemError) Is(target error) bool {
	var other *FilesystemError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// ErrorKind returns the classification string of the error
func (e *FilesystemError) ErrorKind() string {
	return string(e.Kind)
}

var (
	ErrSourceInaccessible = &FilesystemError{Kind: KindSourceInaccessible}
	ErrLinkFailed         = &FilesystemError{Kind: KindLinkFailed}
	ErrCopyFailed         = &FilesystemError{Kind: KindCopyFailed}
	ErrInvalidPath        = &FilesystemError{Kind: KindInvalidPath}
)

// Method tells how a file ended up in the library
type Method string

const (
	MethodHardlink Method = "hardlink"
	MethodCopy     Method = "copy"
	MethodExisting Method = "existing"
)

// linkFunc is os.Link, replaceable in tests
type linkFunc func(oldname, newname string) error

// place puts src at dst, preferring a hardlink and falling back to a copy.
// A destination that already is src, or has the same size, is kept.
func place(src, dst string, link linkFunc) (Method, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", &FilesystemError{Kind: KindSourceInaccessible, Path: src, Err: err}
	}
	if !srcInfo.Mode().IsRegular() {
		return "", &FilesystemError{Kind: KindSourceInaccessible, Path: src, Err: errors.New("not a regular file")}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", &FilesystemError{Kind: KindLinkFailed, Path: dst, Err: err}
	}

	if dstInfo, err := os.Stat(dst); err == nil {
		if os.SameFile(srcInfo, dstInfo) || dstInfo.Size() == srcInfo.Size() {
			return MethodExisting, nil
		}
		if err := os.Remove(dst); err != nil {
			return "", &FilesystemError{Kind: KindLinkFailed, Path: dst, Err: err}
		}
	}

	linkErr := link(src, dst)
	if linkErr == nil {
		return MethodHardlink, nil
	}

	if err := copyFile(src, dst, srcInfo.Mode().Perm()); err != nil {
		return "", &FilesystemError{
			Kind: KindCopyFailed,
			Path: dst,
			Err:  fmt.Errorf("hardlink: %v; copy: %w", linkErr, err),
		}
	}
	return MethodCopy, nil
}

// copyFile streams src to a temporary file next to dst and renames it into
// place, so an interrupted copy never leaves a truncated episode behind.
func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
