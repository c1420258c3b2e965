package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeit/server/pkg/apperr"
	"github.com/storeit/server/pkg/types"
)

func newTestRepo(t *testing.T) *MetadataRepository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test_metadata.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create metadata repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(id, owner, name string, ft types.FileType, size int64) *types.FileRecord {
	now := time.Now().UTC()
	return &types.FileRecord{
		ID:         id,
		Name:       name,
		Type:       ft,
		Size:       size,
		URL:        types.FileURL(owner, name),
		Owner:      owner,
		SharedWith: []string{},
		DateAdded:  now,
		LastEdited: now,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.pdf", types.FileTypeDocument, 128)
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", got.Name)
	assert.Equal(t, types.FileTypeDocument, got.Type)
	assert.Equal(t, int64(128), got.Size)
	assert.Equal(t, "owner-1", got.Owner)
	assert.Equal(t, "/uploads/owner-1/doc.pdf", got.URL)
	assert.Empty(t, got.SharedWith)

	byName, err := repo.GetByOwnerName(ctx, "owner-1", "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byName.ID)
}

func TestCreateDuplicateIDIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.pdf", types.FileTypeDocument, 128)
	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.Create(ctx, rec), "repeated create of the same record must be a no-op")

	records, err := repo.ListByOwner(ctx, "owner-1", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreateNameConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("id-1", "owner-1", "doc.pdf", types.FileTypeDocument, 128)))

	err := repo.Create(ctx, testRecord("id-2", "owner-1", "doc.pdf", types.FileTypeDocument, 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	// Same name under a different owner is fine.
	require.NoError(t, repo.Create(ctx, testRecord("id-3", "owner-2", "doc.pdf", types.FileTypeDocument, 64)))
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListByOwnerOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		rec := testRecord("id-"+name, "owner-1", name, types.FileTypeDocument, 10)
		rec.LastEdited = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, rec))
	}
	require.NoError(t, repo.Create(ctx, testRecord("id-x", "other-owner", "x.txt", types.FileTypeDocument, 10)))

	records, err := repo.ListByOwner(ctx, "owner-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c.txt", records[0].Name, "newest edit first")
	assert.Equal(t, "a.txt", records[2].Name)

	limited, err := repo.ListByOwner(ctx, "owner-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := repo.ListByOwner(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateRefreshesTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.txt", types.FileTypeDocument, 10)
	rec.LastEdited = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, rec))

	before := rec.LastEdited
	rec.Name = "doc.pdf"
	rec.URL = types.FileURL("owner-1", "doc.pdf")
	require.NoError(t, repo.Update(ctx, rec))
	assert.True(t, rec.LastEdited.After(before), "update must refresh last_edited")

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", got.Name)
	assert.True(t, got.LastEdited.After(before))
}

func TestUpdateNotFound(t *testing.T) {
	repo := newTestRepo(t)

	rec := testRecord("ghost", "owner-1", "doc.txt", types.FileTypeDocument, 10)
	err := repo.Update(context.Background(), rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateSharedWithRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.txt", types.FileTypeDocument, 10)
	require.NoError(t, repo.Create(ctx, rec))

	rec.SharedWith = []string{"friend@example.com", "colleague@example.com"}
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"friend@example.com", "colleague@example.com"}, got.SharedWith)

	shared, err := repo.ListSharedWith(ctx, "friend@example.com")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "id-1", shared[0].ID)

	none, err := repo.ListSharedWith(ctx, "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListSharedWithMatchesExactEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.txt", types.FileTypeDocument, 10)
	rec.SharedWith = []string{"johnxdoe@example.com"}
	require.NoError(t, repo.Create(ctx, rec))

	// An underscore in the email must not act as a single-character wildcard
	// against similar addresses.
	shared, err := repo.ListSharedWith(ctx, "john_doe@example.com")
	require.NoError(t, err)
	assert.Empty(t, shared)

	shared, err = repo.ListSharedWith(ctx, "johnxdoe@example.com")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "id-1", shared[0].ID)

	// A substring of a listed email is not a match either.
	shared, err = repo.ListSharedWith(ctx, "doe@example.com")
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestCreateSameIDDifferentRecordConflicts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("id-1", "owner-1", "doc.pdf", types.FileTypeDocument, 128)))

	err := repo.Create(ctx, testRecord("id-1", "owner-2", "other.txt", types.FileTypeDocument, 64))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	// The stored row is the original one.
	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.Owner)
	assert.Equal(t, "doc.pdf", got.Name)
}

func TestMalformedSharedWithDegradesToUnshared(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("id-1", "owner-1", "doc.txt", types.FileTypeDocument, 10)
	require.NoError(t, repo.Create(ctx, rec))

	_, err := repo.db.ExecContext(ctx,
		`UPDATE files_metadata SET shared_with = 'not-json' WHERE id = ?`, "id-1")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.SharedWith, "corrupt share list reads as unshared")

	// The corrupt row must not break share lookups for everyone else.
	shared, err := repo.ListSharedWith(ctx, "anyone@example.com")
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("id-1", "owner-1", "doc.txt", types.FileTypeDocument, 10)))
	require.NoError(t, repo.Delete(ctx, "id-1"))

	_, err := repo.GetByID(ctx, "id-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = repo.Delete(ctx, "id-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSumSizeByOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	total, err := repo.SumSizeByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "no records means verified zero")

	require.NoError(t, repo.Create(ctx, testRecord("id-1", "owner-1", "a.txt", types.FileTypeDocument, 100)))
	require.NoError(t, repo.Create(ctx, testRecord("id-2", "owner-1", "b.png", types.FileTypeImage, 250)))
	require.NoError(t, repo.Create(ctx, testRecord("id-3", "owner-2", "c.png", types.FileTypeImage, 999)))

	total, err = repo.SumSizeByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(350), total)
}

func TestNewWithBadPath(t *testing.T) {
	// parent directory does not exist
	_, err := New(filepath.Join(t.TempDir(), "missing", "db.sqlite"), nil)
	assert.Error(t, err)
}

func TestErrorsCarryKind(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "repository.GetByID", appErr.Op)
}
