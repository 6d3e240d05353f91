package fileInfo

import (
	"sort"
	"time"
)

// File is the canonical client-side view of one ledger record joined with its
// pinned content. Fields are set once at upload time; there is no rename or
// edit operation.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	ContentID string    `json:"content_id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

func SortByCreatedAtDesc(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
}
