package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/storeit/server/pkg/apperr"
)

// DiskStore keeps blobs as plain files, one directory per owner under a
// fixed root. Files are named by their normalized display name.
type DiskStore struct {
	root string
}

// NewDiskStore creates a disk-backed blob store rooted at root. The root
// directory is created if it does not exist.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, apperr.E(apperr.ErrStorageIO, "storage.NewDiskStore", "", root, err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Write(ctx context.Context, owner, name string, data []byte) error {
	const op = "storage.Write"

	dir, err := s.ownerDir(op, owner)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}

	target, err := s.path(op, owner, name)
	if err != nil {
		return err
	}

	// Write to a temp file in the same directory, then rename into place so
	// a crashed write never leaves a truncated blob under the real name.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return nil
}

func (s *DiskStore) Read(ctx context.Context, owner, name string) ([]byte, error) {
	const op = "storage.Read"

	path, err := s.path(op, owner, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.E(apperr.ErrNotFound, op, owner, name, nil)
		}
		return nil, apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return data, nil
}

func (s *DiskStore) Rename(ctx context.Context, owner, oldName, newName string) error {
	const op = "storage.Rename"

	oldPath, err := s.path(op, owner, oldName)
	if err != nil {
		return err
	}
	newPath, err := s.path(op, owner, newName)
	if err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		if os.IsNotExist(err) {
			return apperr.E(apperr.ErrNotFound, op, owner, oldName, nil)
		}
		return apperr.E(apperr.ErrStorageIO, op, owner, oldName, err)
	}
	return nil
}

func (s *DiskStore) Remove(ctx context.Context, owner, name string) error {
	const op = "storage.Remove"

	path, err := s.path(op, owner, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return nil
}

func (s *DiskStore) Exists(ctx context.Context, owner, name string) (bool, error) {
	const op = "storage.Exists"

	path, err := s.path(op, owner, name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apperr.E(apperr.ErrStorageIO, op, owner, name, err)
	}
	return true, nil
}

func (s *DiskStore) ownerDir(op, owner string) (string, error) {
	if !safeComponent(owner) {
		return "", apperr.E(apperr.ErrStorageIO, op, owner, "", nil)
	}
	return filepath.Join(s.root, owner), nil
}

func (s *DiskStore) path(op, owner, name string) (string, error) {
	dir, err := s.ownerDir(op, owner)
	if err != nil {
		return "", err
	}
	if !safeComponent(name) {
		return "", apperr.E(apperr.ErrStorageIO, op, owner, name, nil)
	}
	return filepath.Join(dir, name), nil
}

// safeComponent rejects anything that could escape its directory.
func safeComponent(v string) bool {
	if v == "" || v == "." || v == ".." {
		return false
	}
	return !strings.ContainsAny(v, `/\`)
}
