package ledger

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestDecodeRecord(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	out := []interface{}{
		big.NewInt(7),
		"a.txt",
		"text/plain",
		big.NewInt(10),
		"Qm123",
		owner,
		big.NewInt(1700000000),
	}

	rec, err := decodeRecord(out)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID.Int64())
	assert.Equal(t, "a.txt", rec.FileName)
	assert.Equal(t, "text/plain", rec.FileType)
	assert.Equal(t, int64(10), rec.FileSize.Int64())
	assert.Equal(t, "Qm123", rec.IPFSHash)
	assert.Equal(t, owner, rec.Owner)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.CreatedAt())
}

func TestDecodeRecord_WrongArity(t *testing.T) {
	_, err := decodeRecord([]interface{}{big.NewInt(1)})
	assert.Error(t, err)
}

func TestCreatedAt_PreservesLargeTimestamps(t *testing.T) {
	// values past float64's 2^53 integer precision must still convert exactly
	ts, ok := new(big.Int).SetString("9007199254740995", 10)
	assert.True(t, ok)

	rec := &Record{UploadTimestamp: ts}
	assert.Equal(t, int64(9007199254740995), rec.CreatedAt().Unix())
}

func TestCreatedAt_NonInt64(t *testing.T) {
	huge, _ := new(big.Int).SetString("99999999999999999999999999", 10)
	rec := &Record{UploadTimestamp: huge}
	assert.True(t, rec.CreatedAt().IsZero())

	assert.True(t, (&Record{}).CreatedAt().IsZero())
}

func TestParseABI(t *testing.T) {
	c, err := NewContract(nil, common.Address{}, nil, 0)
	assert.NoError(t, err)

	for _, method := range []string{"addFile", "getFile", "getUserFiles", "getFilesSharedWithMe", "deleteFile", "shareFile"} {
		_, ok := c.abi.Methods[method]
		assert.True(t, ok, "missing method %s", method)
	}
	_, ok := c.abi.Events["FileAdded"]
	assert.True(t, ok)
	assert.Equal(t, defaultConfirmTimeout, c.confirmTimeout)
}

func TestIsRevert(t *testing.T) {
	assert.True(t, isRevert(errors.New("execution reverted: file does not exist")))
	assert.False(t, isRevert(errors.New("connection refused")))
	assert.False(t, isRevert(nil))
}
