package kobo

import "time"

// SnapshotResponse is the device-facing view of a snapshot.
type SnapshotResponse struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	BookCount   int        `json:"book_count"`
}

// SnapshotBookResponse is the device-facing view of one snapshot row.
type SnapshotBookResponse struct {
	BookID            int       `json:"book_id"`
	FileID            int       `json:"file_id"`
	FileHash          string    `json:"file_hash"`
	FileSize          int64     `json:"file_size"`
	MetadataUpdatedAt time.Time `json:"metadata_updated_at"`
}

// ChangesResponse bundles one page of each change class between two
// snapshots.
type ChangesResponse struct {
	Added   []*SnapshotBookResponse `json:"added"`
	Removed []*SnapshotBookResponse `json:"removed"`
	Changed []*SnapshotBookResponse `json:"changed"`
}

func toSnapshotResponse(snapshot *LibrarySnapshot) *SnapshotResponse {
	return &SnapshotResponse{
		ID:          snapshot.ID,
		CreatedAt:   snapshot.CreatedAt,
		CompletedAt: snapshot.CompletedAt,
		BookCount:   len(snapshot.Books),
	}
}

func toSnapshotBookResponses(rows []*SnapshotBook) []*SnapshotBookResponse {
	resp := make([]*SnapshotBookResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, &SnapshotBookResponse{
			BookID:            row.BookID,
			FileID:            row.FileID,
			FileHash:          row.FileHash,
			FileSize:          row.FileSize,
			MetadataUpdatedAt: row.MetadataUpdatedAt,
		})
	}
	return resp
}
