package fileService

import (
	"context"
	"io"
	"math/big"
	"sync"
	"time"

	"blockvault/internal/ledger"
	"blockvault/internal/model/fileInfo"
	"blockvault/internal/model/txHistory"
	"blockvault/internal/pinning"
	"blockvault/internal/wallet"
	"blockvault/pkg/faults"
	"blockvault/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RecordCacher is the optional read-through cache for decoded records.
type RecordCacher interface {
	Get(ctx context.Context, fileID string) (*fileInfo.File, error)
	Set(ctx context.Context, file *fileInfo.File) error
	Delete(ctx context.Context, fileID string) error
}

// HistoryStore is the optional local log of ledger mutations.
type HistoryStore interface {
	Record(ctx context.Context, entry *txHistory.Entry) error
	ListByAccount(ctx context.Context, account string, limit int) ([]*txHistory.Entry, error)
}

// FileService sequences the content store and the ledger into the file
// lifecycle workflows. The ordering rules it enforces:
//
//   - a file enters the local list only after ledger confirmation, so the list
//     never shows a record the network may still roll back;
//   - deletion removes the ledger record first, and only then attempts to
//     unpin content — a dangling pin is acceptable, a dangling ledger pointer
//     to deleted content is not;
//   - mutating operations on the same file id are serialized.
type FileService struct {
	session *wallet.Session
	store   pinning.Store
	ledger  ledger.Ledger
	cache   RecordCacher
	history HistoryStore

	mu        sync.Mutex
	files     []*fileInfo.File
	progress  int
	uploading bool

	lockMu  sync.Mutex
	idLocks map[string]*sync.Mutex
}

// New wires the orchestration service. cache and history may be nil.
func New(session *wallet.Session, store pinning.Store, led ledger.Ledger, cache RecordCacher, history HistoryStore) *FileService {
	return &FileService{
		session: session,
		store:   store,
		ledger:  led,
		cache:   cache,
		history: history,
		idLocks: map[string]*sync.Mutex{},
	}
}

// UploadFile pins the content, records the pointer on the ledger and waits for
// confirmation. Progress is reported on a 0-100 scale: the remote pinning
// fraction p occupies 10-70, the ledger write 70-80, and 100 is reported only
// after the ledger confirms. On any failure no local state changes and already
// pinned content is deliberately left in place: an orphaned pin is a known,
// recoverable state, a half-trusted ledger write is not.
func (s *FileService) UploadFile(ctx context.Context, name, mimeType string, data io.Reader, size int64, onProgress func(int)) (*fileInfo.File, error) {
	const op = "fileService.UploadFile"
	log := logger.GetLogger(ctx)

	account, ok := s.session.Account()
	if !ok {
		return nil, faults.New(faults.NoSession, op, "wallet not connected")
	}
	if s.store == nil || s.ledger == nil {
		return nil, faults.New(faults.NoSession, op, "storage clients unavailable")
	}

	s.beginUpload()
	defer s.endUpload()
	report := s.progressReporter(onProgress)

	report(10)
	pin, err := s.store.Upload(ctx, name, mimeType, data, size, func(p float64) {
		report(10 + int(p*60))
	})
	if err != nil {
		log.Error("content upload failed", zap.String("name", name), zap.Error(err))
		return nil, asFault(op, err)
	}

	report(70)
	report(80)
	conf, err := s.ledger.AddFile(ctx, name, mimeType, size, pin.ContentID)
	if err != nil {
		// the pin stays: a compensating unpin here could race a transaction
		// that was submitted but not yet observed
		log.Error("ledger write failed, pinned content orphaned",
			zap.String("name", name), zap.String("cid", pin.ContentID), zap.Error(err))
		s.recordHistory(ctx, account.Hex(), txHistory.OpUpload, "", "", txHistory.StatusFailed)
		return nil, asFault(op, err)
	}
	report(100)

	file := &fileInfo.File{
		ID:        conf.FileID.String(),
		Name:      name,
		MimeType:  mimeType,
		SizeBytes: size,
		ContentID: pin.ContentID,
		Owner:     account.Hex(),
		CreatedAt: conf.Timestamp,
	}

	s.mu.Lock()
	s.files = append(s.files, file)
	s.mu.Unlock()

	s.recordHistory(ctx, account.Hex(), txHistory.OpUpload, file.ID, conf.TxHash.Hex(), txHistory.StatusConfirmed)
	log.Info("file uploaded", zap.String("id", file.ID), zap.String("cid", file.ContentID))
	return file, nil
}

// ListOwnedFiles fetches the caller's files, newest first, and refreshes the
// local list. An entry whose per-id fetch fails is dropped and logged rather
// than aborting the whole listing.
func (s *FileService) ListOwnedFiles(ctx context.Context) ([]*fileInfo.File, error) {
	const op = "fileService.ListOwnedFiles"

	if _, ok := s.session.Account(); !ok {
		return nil, faults.New(faults.NoSession, op, "wallet not connected")
	}
	ids, err := s.ledger.GetUserFiles(ctx)
	if err != nil {
		return nil, asFault(op, err)
	}

	files := s.fetchRecords(ctx, ids, common.Address{})
	fileInfo.SortByCreatedAtDesc(files)

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return files, nil
}

// ListSharedFiles fetches files other owners granted to the caller, newest
// first. It never touches the owned-files list.
func (s *FileService) ListSharedFiles(ctx context.Context) ([]*fileInfo.File, error) {
	const op = "fileService.ListSharedFiles"

	account, ok := s.session.Account()
	if !ok {
		return nil, faults.New(faults.NoSession, op, "wallet not connected")
	}
	ids, err := s.ledger.GetFilesSharedWithMe(ctx)
	if err != nil {
		return nil, asFault(op, err)
	}

	files := s.fetchRecords(ctx, ids, account)
	fileInfo.SortByCreatedAtDesc(files)
	return files, nil
}

// GetFileDetails resolves one record, read-through the cache when one is
// configured.
func (s *FileService) GetFileDetails(ctx context.Context, fileID string) (*fileInfo.File, error) {
	const op = "fileService.GetFileDetails"
	log := logger.GetLogger(ctx)

	id, err := parseFileID(op, fileID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, fileID)
		if err != nil {
			log.Warn("record cache read failed", zap.String("id", fileID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	rec, err := s.ledger.GetFile(ctx, id)
	if err != nil {
		return nil, asFault(op, err)
	}
	file := recordToFile(rec)

	if s.cache != nil {
		if err := s.cache.Set(ctx, file); err != nil {
			log.Warn("record cache write failed", zap.String("id", fileID), zap.Error(err))
		}
	}
	return file, nil
}

// DeleteFile removes the ledger record and then, best-effort, the pinned
// content. The ledger deletion is the authoritative, irreversible step: if it
// fails nothing else happens, and once it is confirmed a pin-removal failure
// is logged and swallowed, never retried, never surfaced, and never a reason
// to resurrect the record.
func (s *FileService) DeleteFile(ctx context.Context, fileID string) error {
	const op = "fileService.DeleteFile"
	log := logger.GetLogger(ctx)

	account, ok := s.session.Account()
	if !ok {
		return faults.New(faults.NoSession, op, "wallet not connected")
	}
	id, err := parseFileID(op, fileID)
	if err != nil {
		return err
	}

	unlock := s.lockID(fileID)
	defer unlock()

	// read the record first: after ledger deletion the contentId is gone
	rec, err := s.ledger.GetFile(ctx, id)
	if err != nil {
		return asFault(op, err)
	}

	conf, err := s.ledger.DeleteFile(ctx, id)
	if err != nil {
		s.recordHistory(ctx, account.Hex(), txHistory.OpDelete, fileID, "", txHistory.StatusFailed)
		return asFault(op, err)
	}

	s.mu.Lock()
	s.files = removeByID(s.files, fileID)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, fileID); err != nil {
			log.Warn("record cache invalidation failed", zap.String("id", fileID), zap.Error(err))
		}
	}
	s.recordHistory(ctx, account.Hex(), txHistory.OpDelete, fileID, conf.TxHash.Hex(), txHistory.StatusConfirmed)

	if err := s.store.Remove(ctx, rec.IPFSHash); err != nil {
		log.Warn("unpin after delete failed, content orphaned",
			zap.String("id", fileID), zap.String("cid", rec.IPFSHash), zap.Error(err))
	}
	return nil
}

// ShareFile grants the recipient read access. Grants are additive only (the
// contract has no revoke operation) and sharing never changes ownership, so
// the owned-files list is left alone.
func (s *FileService) ShareFile(ctx context.Context, fileID, recipient string) (bool, error) {
	const op = "fileService.ShareFile"

	account, ok := s.session.Account()
	if !ok {
		return false, faults.New(faults.NoSession, op, "wallet not connected")
	}
	if recipient == "" {
		return false, faults.New(faults.Validation, op, "empty recipient address")
	}
	if !common.IsHexAddress(recipient) {
		return false, faults.New(faults.Validation, op, "recipient is not a valid address")
	}
	id, err := parseFileID(op, fileID)
	if err != nil {
		return false, err
	}

	unlock := s.lockID(fileID)
	defer unlock()

	conf, err := s.ledger.ShareFile(ctx, id, common.HexToAddress(recipient))
	if err != nil {
		s.recordHistory(ctx, account.Hex(), txHistory.OpShare, fileID, "", txHistory.StatusFailed)
		return false, asFault(op, err)
	}
	s.recordHistory(ctx, account.Hex(), txHistory.OpShare, fileID, conf.TxHash.Hex(), txHistory.StatusConfirmed)
	return true, nil
}

// History lists the local mutation log for the connected account.
func (s *FileService) History(ctx context.Context, limit int) ([]*txHistory.Entry, error) {
	const op = "fileService.History"

	account, ok := s.session.Account()
	if !ok {
		return nil, faults.New(faults.NoSession, op, "wallet not connected")
	}
	if s.history == nil {
		return []*txHistory.Entry{}, nil
	}
	entries, err := s.history.ListByAccount(ctx, account.Hex(), limit)
	if err != nil {
		return nil, asFault(op, err)
	}
	return entries, nil
}

// Files returns a snapshot of the local owned-files list.
func (s *FileService) Files() []*fileInfo.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fileInfo.File, len(s.files))
	copy(out, s.files)
	return out
}

func (s *FileService) IsUploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading
}

// UploadProgress reports the last progress value of the current or most
// recent upload; after a successful upload it is exactly 100.
func (s *FileService) UploadProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *FileService) fetchRecords(ctx context.Context, ids []*big.Int, skipOwner common.Address) []*fileInfo.File {
	log := logger.GetLogger(ctx)

	files := make([]*fileInfo.File, 0, len(ids))
	if len(ids) == 0 {
		return files
	}
	for _, id := range ids {
		rec, err := s.ledger.GetFile(ctx, id)
		if err != nil {
			log.Warn("dropping unreadable ledger entry", zap.String("id", id.String()), zap.Error(err))
			continue
		}
		if skipOwner != (common.Address{}) && rec.Owner == skipOwner {
			continue
		}
		files = append(files, recordToFile(rec))
	}
	return files
}

func (s *FileService) beginUpload() {
	s.mu.Lock()
	s.uploading = true
	s.progress = 0
	s.mu.Unlock()
}

func (s *FileService) endUpload() {
	s.mu.Lock()
	s.uploading = false
	s.mu.Unlock()
}

// progressReporter clamps to [0,100] and never goes backwards, whatever the
// remote store reports.
func (s *FileService) progressReporter(cb func(int)) func(int) {
	return func(p int) {
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		s.mu.Lock()
		if p < s.progress {
			s.mu.Unlock()
			return
		}
		s.progress = p
		s.mu.Unlock()
		if cb != nil {
			cb(p)
		}
	}
}

func (s *FileService) lockID(fileID string) func() {
	s.lockMu.Lock()
	l, ok := s.idLocks[fileID]
	if !ok {
		l = &sync.Mutex{}
		s.idLocks[fileID] = l
	}
	s.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *FileService) recordHistory(ctx context.Context, account, op, fileID, txHash, status string) {
	if s.history == nil {
		return
	}
	entry := &txHistory.Entry{
		Account:   account,
		Op:        op,
		FileID:    fileID,
		TxHash:    txHash,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.history.Record(ctx, entry); err != nil {
		logger.GetLogger(ctx).Warn("failed to record tx history", zap.Error(err))
	}
}

func recordToFile(rec *ledger.Record) *fileInfo.File {
	return &fileInfo.File{
		ID:        rec.ID.String(),
		Name:      rec.FileName,
		MimeType:  rec.FileType,
		SizeBytes: rec.FileSize.Int64(),
		ContentID: rec.IPFSHash,
		Owner:     rec.Owner.Hex(),
		CreatedAt: rec.CreatedAt(),
	}
}

func removeByID(files []*fileInfo.File, fileID string) []*fileInfo.File {
	out := files[:0]
	for _, f := range files {
		if f.ID != fileID {
			out = append(out, f)
		}
	}
	return out
}

func parseFileID(op, fileID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(fileID, 10)
	if !ok || id.Sign() < 0 {
		return nil, faults.New(faults.Validation, op, "file id is not a valid ledger id")
	}
	return id, nil
}

// asFault guarantees callers always see a tagged failure, whatever the client
// underneath returned.
func asFault(op string, err error) error {
	if faults.KindOf(err) != faults.Unknown {
		return err
	}
	return faults.Wrap(faults.RemoteUnavailable, op, err)
}
