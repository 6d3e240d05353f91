package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"blockvault/pkg/faults"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const fileStorageABI = `[
	{"type":"function","name":"addFile","stateMutability":"nonpayable","inputs":[{"name":"fileName","type":"string"},{"name":"fileType","type":"string"},{"name":"fileSize","type":"uint256"},{"name":"ipfsHash","type":"string"}],"outputs":[]},
	{"type":"function","name":"getFile","stateMutability":"view","inputs":[{"name":"fileId","type":"uint256"}],"outputs":[{"name":"id","type":"uint256"},{"name":"fileName","type":"string"},{"name":"fileType","type":"string"},{"name":"fileSize","type":"uint256"},{"name":"ipfsHash","type":"string"},{"name":"owner","type":"address"},{"name":"uploadTimestamp","type":"uint256"}]},
	{"type":"function","name":"getUserFiles","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getFilesSharedWithMe","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"deleteFile","stateMutability":"nonpayable","inputs":[{"name":"fileId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"shareFile","stateMutability":"nonpayable","inputs":[{"name":"fileId","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]},
	{"type":"event","name":"FileAdded","anonymous":false,"inputs":[{"name":"fileId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"ipfsHash","type":"string","indexed":false}]}
]`

const defaultConfirmTimeout = 90 * time.Second

// Signer supplies the current account and transaction options. wallet.Session
// implements it, so a rebound account is picked up on the next call without
// rebuilding the contract handle.
type Signer interface {
	Account() (common.Address, bool)
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
}

// Backend is the slice of an Ethereum client the contract needs.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
}

// Contract is the Ledger implementation over the deployed file-storage
// contract.
type Contract struct {
	backend        Backend
	signer         Signer
	bound          *bind.BoundContract
	abi            abi.ABI
	confirmTimeout time.Duration
}

func NewContract(backend Backend, address common.Address, signer Signer, confirmTimeout time.Duration) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(fileStorageABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse file storage ABI: %w", err)
	}
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	return &Contract{
		backend:        backend,
		signer:         signer,
		bound:          bind.NewBoundContract(address, parsed, backend, backend, backend),
		abi:            parsed,
		confirmTimeout: confirmTimeout,
	}, nil
}

func (c *Contract) AddFile(ctx context.Context, name, mimeType string, size int64, cid string) (*Confirmation, error) {
	const op = "ledger.AddFile"

	tx, err := c.transact(ctx, op, "addFile", name, mimeType, big.NewInt(size), cid)
	if err != nil {
		return nil, err
	}
	receipt, minedAt, err := c.confirm(ctx, op, tx)
	if err != nil {
		return nil, err
	}

	fileID, err := c.fileIDFromLogs(receipt)
	if err != nil {
		return nil, faults.Wrap(faults.Unconfirmed, op, err)
	}
	return &Confirmation{FileID: fileID, TxHash: tx.Hash(), Timestamp: minedAt}, nil
}

func (c *Contract) GetFile(ctx context.Context, id *big.Int) (*Record, error) {
	const op = "ledger.GetFile"

	var out []interface{}
	if err := c.bound.Call(c.callOpts(ctx), &out, "getFile", id); err != nil {
		if isRevert(err) {
			return nil, faults.Wrap(faults.NotFound, op, err)
		}
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	rec, err := decodeRecord(out)
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	return rec, nil
}

func (c *Contract) GetUserFiles(ctx context.Context) ([]*big.Int, error) {
	return c.idList(ctx, "ledger.GetUserFiles", "getUserFiles")
}

func (c *Contract) GetFilesSharedWithMe(ctx context.Context) ([]*big.Int, error) {
	return c.idList(ctx, "ledger.GetFilesSharedWithMe", "getFilesSharedWithMe")
}

func (c *Contract) DeleteFile(ctx context.Context, id *big.Int) (*Confirmation, error) {
	const op = "ledger.DeleteFile"

	tx, err := c.transact(ctx, op, "deleteFile", id)
	if err != nil {
		return nil, err
	}
	_, minedAt, err := c.confirm(ctx, op, tx)
	if err != nil {
		return nil, err
	}
	return &Confirmation{TxHash: tx.Hash(), Timestamp: minedAt}, nil
}

func (c *Contract) ShareFile(ctx context.Context, id *big.Int, recipient common.Address) (*Confirmation, error) {
	const op = "ledger.ShareFile"

	tx, err := c.transact(ctx, op, "shareFile", id, recipient)
	if err != nil {
		return nil, err
	}
	_, minedAt, err := c.confirm(ctx, op, tx)
	if err != nil {
		return nil, err
	}
	return &Confirmation{TxHash: tx.Hash(), Timestamp: minedAt}, nil
}

func (c *Contract) idList(ctx context.Context, op, method string) ([]*big.Int, error) {
	var out []interface{}
	if err := c.bound.Call(c.callOpts(ctx), &out, method); err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	if len(out) != 1 {
		return nil, faults.New(faults.RemoteUnavailable, op, "unexpected return arity")
	}
	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	return ids, nil
}

func (c *Contract) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if from, ok := c.signer.Account(); ok {
		opts.From = from
	}
	return opts
}

func (c *Contract) transact(ctx context.Context, op, method string, args ...interface{}) (*types.Transaction, error) {
	opts, err := c.signer.Transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	return tx, nil
}

// confirm blocks until tx is mined, bounded by the confirm timeout. The
// receipt is trusted only if it reports success; anything else is an
// Unconfirmed failure and the pending submission must not be reflected in any
// local state.
func (c *Contract) confirm(ctx context.Context, op string, tx *types.Transaction) (*types.Receipt, time.Time, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, time.Time{}, faults.Wrap(faults.Timeout, op, err)
		}
		return nil, time.Time{}, faults.Wrap(faults.Unconfirmed, op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, time.Time{}, faults.New(faults.Unconfirmed, op, "transaction reverted")
	}

	header, err := c.backend.HeaderByHash(ctx, receipt.BlockHash)
	if err != nil {
		return nil, time.Time{}, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	return receipt, time.Unix(int64(header.Time), 0).UTC(), nil
}

func (c *Contract) fileIDFromLogs(receipt *types.Receipt) (*big.Int, error) {
	eventID := c.abi.Events["FileAdded"].ID
	for _, l := range receipt.Logs {
		if len(l.Topics) >= 2 && l.Topics[0] == eventID {
			return new(big.Int).SetBytes(l.Topics[1].Bytes()), nil
		}
	}
	return nil, errors.New("confirmed receipt has no FileAdded event")
}

func decodeRecord(out []interface{}) (*Record, error) {
	if len(out) != 7 {
		return nil, fmt.Errorf("unexpected getFile return arity %d", len(out))
	}
	return &Record{
		ID:              *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		FileName:        *abi.ConvertType(out[1], new(string)).(*string),
		FileType:        *abi.ConvertType(out[2], new(string)).(*string),
		FileSize:        *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		IPFSHash:        *abi.ConvertType(out[4], new(string)).(*string),
		Owner:           *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
		UploadTimestamp: *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
	}, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "revert")
}
