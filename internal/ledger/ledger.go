package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the one strict schema for an on-chain file entry. Decoding happens
// in exactly one place (decodeRecord); there is no positional/by-name dual
// access anywhere else. Integer fields stay *big.Int end to end so block
// timestamps never pass through a float.
type Record struct {
	ID              *big.Int
	FileName        string
	FileType        string
	FileSize        *big.Int
	IPFSHash        string
	Owner           common.Address
	UploadTimestamp *big.Int
}

// CreatedAt converts the on-chain timestamp to wall time with exact second
// resolution.
func (r *Record) CreatedAt() time.Time {
	if r.UploadTimestamp == nil || !r.UploadTimestamp.IsInt64() {
		return time.Time{}
	}
	return time.Unix(r.UploadTimestamp.Int64(), 0).UTC()
}

// Confirmation is the finalized outcome of a mutating call. For AddFile,
// FileID carries the ledger-assigned id; Timestamp is the mined block's time,
// authoritative over any client clock.
type Confirmation struct {
	FileID    *big.Int
	TxHash    common.Hash
	Timestamp time.Time
}

// Ledger wraps the file-storage contract. Every mutating call is two-phase:
// it submits the transaction and blocks until the ledger finalizes it; an
// unconfirmed submission is never reported as success.
type Ledger interface {
	AddFile(ctx context.Context, name, mimeType string, size int64, cid string) (*Confirmation, error)
	GetFile(ctx context.Context, id *big.Int) (*Record, error)
	GetUserFiles(ctx context.Context) ([]*big.Int, error)
	GetFilesSharedWithMe(ctx context.Context) ([]*big.Int, error)
	DeleteFile(ctx context.Context, id *big.Int) (*Confirmation, error)
	ShareFile(ctx context.Context, id *big.Int, recipient common.Address) (*Confirmation, error)
}
