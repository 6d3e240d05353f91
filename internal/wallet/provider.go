package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

type EventKind int

const (
	AccountsChanged EventKind = iota
	ChainChanged
)

// Event is a notification pushed by a wallet provider: either the available
// account set changed, or the provider now answers for a different chain.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Provider abstracts the wallet backend the session binds to. It is the Go
// counterpart of an injected browser wallet: it holds keys, knows the chain it
// talks to and can hand out a transaction signer for one of its accounts.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	NewTransactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error)

	// Watch starts pushing provider events into ch until the returned stop
	// function is called.
	Watch(ch chan<- Event) (stop func(), err error)
}
