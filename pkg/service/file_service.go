// Package service contains the orchestrators that keep the metadata table
// and the blob store describing the same set of files. Each operation
// either completes on both sides or compensates the side that succeeded.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storeit/server/pkg/apperr"
	"github.com/storeit/server/pkg/metadata/repository"
	"github.com/storeit/server/pkg/metrics"
	"github.com/storeit/server/pkg/quota"
	"github.com/storeit/server/pkg/storage"
	"github.com/storeit/server/pkg/types"
)

// FileService sequences uploads, renames, shares and deletes over the
// metadata repository and the blob store.
type FileService struct {
	repo    *repository.MetadataRepository
	blobs   storage.BlobStore
	quota   *quota.Accountant
	logger  *zap.Logger
	metrics *metrics.Collector
	owners  *ownerLocks
}

// New creates a FileService. metrics may be nil.
func New(repo *repository.MetadataRepository, blobs storage.BlobStore, acct *quota.Accountant, logger *zap.Logger, collector *metrics.Collector) *FileService {
	return &FileService{
		repo:    repo,
		blobs:   blobs,
		quota:   acct,
		logger:  logger,
		metrics: collector,
		owners:  newOwnerLocks(),
	}
}

// BatchFile is one file of a batch upload request.
type BatchFile struct {
	Name string
	Data []byte
}

// Upload runs the full upload sequence for one file: normalize the name,
// check quota, persist metadata, write bytes. A quota rejection happens
// before any write. If the byte write fails the just-inserted row is
// deleted again so no metadata exists without a backing blob.
func (s *FileService) Upload(ctx context.Context, owner, fileName string, data []byte) (*types.FileRecord, error) {
	const op = "service.Upload"

	name := types.NormalizeFileName(fileName)
	if name == "" {
		return nil, apperr.E(apperr.ErrStorageIO, op, owner, fileName, errors.New("empty file name after normalization"))
	}

	rec, err := s.reserve(ctx, owner, name, int64(len(data)))
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Write(ctx, owner, name, data); err != nil {
		// Compensate: the row must not outlive the failed write.
		if delErr := s.repo.Delete(ctx, rec.ID); delErr != nil {
			s.logger.Error("orphaned metadata row after failed blob write",
				zap.String("op", op),
				zap.String("owner", owner),
				zap.String("file_id", rec.ID),
				zap.String("file_name", name),
				zap.Error(delErr))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Uploads.Inc()
		s.metrics.UploadBytes.Add(float64(len(data)))
	}
	s.logger.Info("file uploaded",
		zap.String("owner", owner),
		zap.String("file_id", rec.ID),
		zap.String("file_name", name),
		zap.Int64("size", rec.Size))
	return rec, nil
}

// reserve performs the check-then-insert step under the owner's lock, so
// two concurrent uploads cannot both fit into the same remaining headroom.
// The blob write stays outside the lock.
func (s *FileService) reserve(ctx context.Context, owner, name string, size int64) (*types.FileRecord, error) {
	const op = "service.Upload"

	unlock := s.owners.lock(owner)
	defer unlock()

	remaining, err := s.quota.Remaining(ctx, owner)
	if err != nil {
		return nil, err
	}
	if size > remaining {
		if s.metrics != nil {
			s.metrics.QuotaRejections.Inc()
		}
		s.logger.Warn("upload rejected: quota exceeded",
			zap.String("owner", owner),
			zap.String("file_name", name),
			zap.Int64("size", size),
			zap.Int64("remaining", remaining))
		return nil, apperr.E(apperr.ErrQuotaExceeded, op, owner, name, nil)
	}

	now := time.Now().UTC()
	rec := &types.FileRecord{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       types.FileTypeFromName(name),
		Size:       size,
		URL:        types.FileURL(owner, name),
		Owner:      owner,
		SharedWith: []string{},
		DateAdded:  now,
		LastEdited: now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UploadBatch uploads the files concurrently. Files are independent: one
// failure never affects the others, and no ordering between them is
// guaranteed. Results come back keyed by input name.
func (s *FileService) UploadBatch(ctx context.Context, owner string, files []BatchFile) []types.UploadResult {
	results := make([]types.UploadResult, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f BatchFile) {
			defer wg.Done()
			rec, err := s.Upload(ctx, owner, f.Name, f.Data)
			if err != nil {
				results[i] = types.UploadResult{Name: f.Name, Success: false, Error: err.Error()}
				return
			}
			results[i] = types.UploadResult{Name: f.Name, Success: true, Record: rec}
		}(i, f)
	}
	wg.Wait()

	return results
}

// Rename updates the record first (name, recomputed type and url, fresh
// timestamp), then moves the blob. If the blob move fails the metadata is
// rolled back to its previous state, so the pair never stays split.
func (s *FileService) Rename(ctx context.Context, caller, id, newName string) (*types.FileRecord, error) {
	const op = "service.Rename"

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != caller {
		return nil, apperr.E(apperr.ErrUnauthorized, op, caller, id, nil)
	}

	name := types.NormalizeFileName(newName)
	if name == "" {
		return nil, apperr.E(apperr.ErrStorageIO, op, caller, newName, errors.New("empty file name after normalization"))
	}
	if name == rec.Name {
		return rec, nil
	}

	prev := *rec
	rec.Name = name
	rec.Type = types.FileTypeFromName(name)
	rec.URL = types.FileURL(rec.Owner, name)

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.blobs.Rename(ctx, rec.Owner, prev.Name, name); err != nil {
		restore := prev
		if rbErr := s.repo.Update(ctx, &restore); rbErr != nil {
			s.logger.Error("metadata and blob diverged: rename rollback failed",
				zap.String("op", op),
				zap.String("owner", rec.Owner),
				zap.String("file_id", id),
				zap.String("old_name", prev.Name),
				zap.String("new_name", name),
				zap.Error(rbErr))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Renames.Inc()
	}
	s.logger.Info("file renamed",
		zap.String("owner", rec.Owner),
		zap.String("file_id", id),
		zap.String("old_name", prev.Name),
		zap.String("new_name", name))
	return rec, nil
}

// Share replaces the record's share list.
func (s *FileService) Share(ctx context.Context, caller, id string, emails []string) (*types.FileRecord, error) {
	const op = "service.Share"

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != caller {
		return nil, apperr.E(apperr.ErrUnauthorized, op, caller, id, nil)
	}

	rec.SharedWith = dedupe(emails)
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the blob first, then the row. A blob that is already gone
// counts as removed; any other blob failure aborts before the row is
// touched, so metadata is never deleted for a file still on disk.
func (s *FileService) Delete(ctx context.Context, caller, id string) error {
	const op = "service.Delete"

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Owner != caller {
		return apperr.E(apperr.ErrUnauthorized, op, caller, id, nil)
	}

	if err := s.blobs.Remove(ctx, rec.Owner, rec.Name); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		// The row vanished between lookup and delete; the end state is the
		// one we wanted.
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("metadata row already gone during delete",
				zap.String("owner", rec.Owner),
				zap.String("file_id", id))
			return nil
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.Deletes.Inc()
	}
	s.logger.Info("file deleted",
		zap.String("owner", rec.Owner),
		zap.String("file_id", id),
		zap.String("file_name", rec.Name))
	return nil
}

// Get returns a record if the caller owns it or appears on its share list.
func (s *FileService) Get(ctx context.Context, caller, callerEmail, id string) (*types.FileRecord, error) {
	const op = "service.Get"

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Owner != caller && !rec.SharedWithContains(callerEmail) {
		return nil, apperr.E(apperr.ErrUnauthorized, op, caller, id, nil)
	}
	return rec, nil
}

// List returns the caller's own records plus records shared with their
// email, newest edits first.
func (s *FileService) List(ctx context.Context, caller, callerEmail string, limit int) ([]*types.FileRecord, error) {
	owned, err := s.repo.ListByOwner(ctx, caller, limit)
	if err != nil {
		return nil, err
	}
	if callerEmail == "" {
		return owned, nil
	}

	shared, err := s.repo.ListSharedWith(ctx, callerEmail)
	if err != nil {
		return nil, err
	}

	return mergeByLastEdited(owned, shared, limit), nil
}

// Download returns the raw bytes of a stored file, gated on the caller
// being the owner or on the record's share list.
func (s *FileService) Download(ctx context.Context, caller, callerEmail, owner, name string) ([]byte, error) {
	const op = "service.Download"

	rec, err := s.repo.GetByOwnerName(ctx, owner, types.NormalizeFileName(name))
	if err != nil {
		return nil, err
	}
	if rec.Owner != caller && !rec.SharedWithContains(callerEmail) {
		return nil, apperr.E(apperr.ErrUnauthorized, op, caller, name, nil)
	}

	return s.blobs.Read(ctx, owner, rec.Name)
}

// Usage builds the dashboard usage report for an owner.
func (s *FileService) Usage(ctx context.Context, owner string) (*types.UsageReport, error) {
	records, err := s.repo.ListByOwner(ctx, owner, 0)
	if err != nil {
		return nil, err
	}
	remaining, err := s.quota.Remaining(ctx, owner)
	if err != nil {
		return nil, err
	}

	var used int64
	for _, rec := range records {
		used += rec.Size
	}

	return &types.UsageReport{
		Categories: quota.Summarize(records),
		Used:       used,
		Remaining:  remaining,
		Limit:      s.quota.Limit(),
	}, nil
}

func dedupe(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// mergeByLastEdited combines the two sorted slices, dropping duplicate ids.
func mergeByLastEdited(a, b []*types.FileRecord, limit int) []*types.FileRecord {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]*types.FileRecord, 0, len(a)+len(b))

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next *types.FileRecord
		switch {
		case i == len(a):
			next, j = b[j], j+1
		case j == len(b):
			next, i = a[i], i+1
		case b[j].LastEdited.After(a[i].LastEdited):
			next, j = b[j], j+1
		default:
			next, i = a[i], i+1
		}
		if _, ok := seen[next.ID]; ok {
			continue
		}
		seen[next.ID] = struct{}{}
		out = append(out, next)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
