// Package storage provides the byte-storage backends behind the metadata
// layer. Blobs are addressed by (owner, name) and read and written as whole
// buffers; no streaming contract is offered.
package storage

import "context"

// BlobStore is the contract the orchestrators hold on byte storage.
type BlobStore interface {
	// Write stores data under (owner, name), creating the owner's space on
	// first use and replacing any existing blob of the same name.
	Write(ctx context.Context, owner, name string, data []byte) error
	// Read returns the blob's bytes. A missing blob is ErrNotFound.
	Read(ctx context.Context, owner, name string) ([]byte, error)
	// Rename moves a blob to a new name under the same owner.
	Rename(ctx context.Context, owner, oldName, newName string) error
	// Remove deletes a blob. An already-absent blob is success, not an
	// error; any other failure leaves the blob in place.
	Remove(ctx context.Context, owner, name string) error
	// Exists reports whether a blob is present.
	Exists(ctx context.Context, owner, name string) (bool, error)
}
