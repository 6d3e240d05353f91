package wallet_test

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blockvault/internal/wallet"
	"blockvault/pkg/faults"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	mu           sync.Mutex
	accounts     []common.Address
	chainID      *big.Int
	accountCalls int32
	gate         chan struct{} // when set, Accounts blocks until closed
	events       chan<- wallet.Event
}

func (p *fakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	atomic.AddInt32(&p.accountCalls, 1)
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accounts, nil
}

func (p *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID, nil
}

func (p *fakeProvider) NewTransactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account}, nil
}

func (p *fakeProvider) Watch(ch chan<- wallet.Event) (func(), error) {
	p.mu.Lock()
	p.events = ch
	p.mu.Unlock()
	return func() {}, nil
}

func (p *fakeProvider) push(ev wallet.Event) {
	p.mu.Lock()
	ch := p.events
	p.mu.Unlock()
	ch <- ev
}

var (
	addrOne = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrTwo = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: []common.Address{addrOne},
		chainID:  big.NewInt(1337),
	}
}

func TestConnect_NoProvider(t *testing.T) {
	s := wallet.NewSession(nil)
	res := s.Connect(context.Background())
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Reason)
	assert.False(t, s.IsConnected())
}

func TestConnect_Success(t *testing.T) {
	s := wallet.NewSession(newFakeProvider())

	res := s.Connect(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, addrOne, res.Account)
	assert.Equal(t, int64(1337), res.ChainID.Int64())

	account, ok := s.Account()
	assert.True(t, ok)
	assert.Equal(t, addrOne, account)
}

func TestConnect_NoAccounts(t *testing.T) {
	p := newFakeProvider()
	p.accounts = nil
	s := wallet.NewSession(p)

	res := s.Connect(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "wallet has no accounts", res.Reason)
}

func TestConnect_CoalescesConcurrentCalls(t *testing.T) {
	p := newFakeProvider()
	p.gate = make(chan struct{})
	s := wallet.NewSession(p)

	const callers = 8
	results := make(chan wallet.ConnectResult, callers)
	for i := 0; i < callers; i++ {
		go func() {
			results <- s.Connect(context.Background())
		}()
	}

	// let every caller pile onto the in-flight attempt
	time.Sleep(50 * time.Millisecond)
	close(p.gate)

	for i := 0; i < callers; i++ {
		res := <-results
		assert.True(t, res.OK)
		assert.Equal(t, addrOne, res.Account)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.accountCalls))
}

func TestDisconnect_Idempotent(t *testing.T) {
	s := wallet.NewSession(newFakeProvider())
	s.Connect(context.Background())

	s.Disconnect()
	assert.False(t, s.IsConnected())
	s.Disconnect() // no-op

	_, ok := s.Account()
	assert.False(t, ok)
}

func TestTransactor_RequiresConnection(t *testing.T) {
	s := wallet.NewSession(newFakeProvider())

	_, err := s.Transactor(context.Background())
	assert.Error(t, err)
	assert.Equal(t, faults.NoSession, faults.KindOf(err))

	s.Connect(context.Background())
	opts, err := s.Transactor(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, addrOne, opts.From)
}

func TestStart_AccountChangeRebinds(t *testing.T) {
	p := newFakeProvider()
	s := wallet.NewSession(p)
	assert.NoError(t, s.Start(context.Background()))
	defer s.Close()

	s.Connect(context.Background())

	p.mu.Lock()
	p.accounts = []common.Address{addrTwo}
	p.mu.Unlock()
	p.push(wallet.Event{Kind: wallet.AccountsChanged, Accounts: []common.Address{addrTwo}})

	assert.Eventually(t, func() bool {
		account, ok := s.Account()
		return ok && account == addrTwo
	}, time.Second, 10*time.Millisecond)
}

func TestStart_EmptyAccountsDisconnects(t *testing.T) {
	p := newFakeProvider()
	s := wallet.NewSession(p)
	assert.NoError(t, s.Start(context.Background()))
	defer s.Close()

	s.Connect(context.Background())
	p.push(wallet.Event{Kind: wallet.AccountsChanged})

	assert.Eventually(t, func() bool {
		return !s.IsConnected()
	}, time.Second, 10*time.Millisecond)
}

func TestStart_ChainChangeResets(t *testing.T) {
	p := newFakeProvider()
	s := wallet.NewSession(p)

	var resets int32
	s.OnReset(func() { atomic.AddInt32(&resets, 1) })

	assert.NoError(t, s.Start(context.Background()))
	defer s.Close()

	s.Connect(context.Background())
	p.push(wallet.Event{Kind: wallet.ChainChanged, ChainID: big.NewInt(1)})

	assert.Eventually(t, func() bool {
		return !s.IsConnected() && atomic.LoadInt32(&resets) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestOnChange_ObserverLifecycle(t *testing.T) {
	s := wallet.NewSession(newFakeProvider())

	var states []wallet.State
	var mu sync.Mutex
	unregister := s.OnChange(func(st wallet.State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	s.Connect(context.Background())
	s.Disconnect()

	mu.Lock()
	assert.Len(t, states, 2)
	assert.True(t, states[0].Connected)
	assert.False(t, states[1].Connected)
	mu.Unlock()

	unregister()
	s.Connect(context.Background())
	mu.Lock()
	assert.Len(t, states, 2)
	mu.Unlock()
}
