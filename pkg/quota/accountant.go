// Package quota implements per-owner storage accounting: remaining upload
// capacity against a fixed limit, and the per-category usage summary shown
// on the dashboard.
package quota

import (
	"context"

	"github.com/storeit/server/pkg/types"
)

// DefaultLimit is the per-owner quota applied when no limit is configured.
const DefaultLimit = 2 * 1024 * 1024 * 1024 // 2 GiB

// Dashboard summary categories, in display order. Video and audio collapse
// into media.
const (
	CategoryDocument = "document"
	CategoryImage    = "image"
	CategoryMedia    = "media"
	CategoryOther    = "other"
)

// UsageLister is the slice of the metadata repository the accountant needs.
type UsageLister interface {
	SumSizeByOwner(ctx context.Context, owner string) (int64, error)
}

// Accountant computes quota headroom for owners. The limit is fixed at
// construction; there is no ambient global state.
type Accountant struct {
	usage UsageLister
	limit int64
}

// NewAccountant creates an accountant over the given usage source.
// limit <= 0 selects DefaultLimit.
func NewAccountant(usage UsageLister, limit int64) *Accountant {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Accountant{usage: usage, limit: limit}
}

// Limit returns the configured per-owner quota in bytes.
func (a *Accountant) Limit() int64 {
	return a.limit
}

// Remaining returns how many more bytes the owner may upload. An owner with
// no records has the full limit available. A lookup failure propagates:
// zero is only ever returned for verified usage at or over the limit.
func (a *Accountant) Remaining(ctx context.Context, owner string) (int64, error) {
	used, err := a.usage.SumSizeByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	if used >= a.limit {
		return 0, nil
	}
	return a.limit - used, nil
}

// Summarize partitions already-fetched records into the four dashboard
// categories. It never touches the filesystem or the database: sizes come
// from the records themselves. Every category is present in the result,
// zero-valued when empty.
func Summarize(records []*types.FileRecord) []types.CategoryUsage {
	byCategory := map[string]*types.CategoryUsage{}
	order := []string{CategoryDocument, CategoryImage, CategoryMedia, CategoryOther}
	for _, c := range order {
		byCategory[c] = &types.CategoryUsage{Category: c}
	}

	for _, rec := range records {
		u := byCategory[categoryOf(rec.Type)]
		u.TotalBytes += rec.Size
		if rec.LastEdited.After(u.Latest) {
			u.Latest = rec.LastEdited
		}
	}

	summary := make([]types.CategoryUsage, 0, len(order))
	for _, c := range order {
		summary = append(summary, *byCategory[c])
	}
	return summary
}

func categoryOf(t types.FileType) string {
	switch t {
	case types.FileTypeDocument:
		return CategoryDocument
	case types.FileTypeImage:
		return CategoryImage
	case types.FileTypeVideo, types.FileTypeAudio:
		return CategoryMedia
	default:
		return CategoryOther
	}
}
