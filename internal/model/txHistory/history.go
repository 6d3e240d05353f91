package txHistory

import "time"

const (
	OpUpload = "upload"
	OpDelete = "delete"
	OpShare  = "share"
)

const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

type Entry struct {
	ID        int64     `json:"id"`
	Account   string    `json:"account"`
	Op        string    `json:"op"`
	FileID    string    `json:"file_id"`
	TxHash    string    `json:"tx_hash"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
