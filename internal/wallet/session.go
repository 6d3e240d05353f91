package wallet

import (
	"context"
	"math/big"
	"sync"

	"blockvault/pkg/faults"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ConnectResult reports the outcome of a connection attempt. A missing or
// empty wallet is a normal, non-fatal outcome: OK is false and Reason says
// why, nothing is thrown.
type ConnectResult struct {
	OK      bool
	Account common.Address
	ChainID *big.Int
	Reason  string
}

// State is what observers see on every session transition.
type State struct {
	Connected bool
	Account   common.Address
	ChainID   *big.Int
}

// Session owns the process-wide wallet binding: current account, chain id and
// the signer used for ledger mutations. It is constructed explicitly and
// passed to the components that need it; there is no ambient global.
type Session struct {
	provider Provider

	mu         sync.Mutex
	inflight   chan struct{}
	last       ConnectResult
	connected  bool
	account    common.Address
	chainID    *big.Int
	transactor *bind.TransactOpts

	resetFn   func()
	observers map[int]func(State)
	nextObs   int

	stopWatch func()
}

func NewSession(provider Provider) *Session {
	return &Session{
		provider:  provider,
		observers: map[int]func(State){},
	}
}

// Connect binds the session to the provider's first account. Concurrent calls
// while an attempt is in flight are coalesced: exactly one attempt runs and
// every caller observes its result.
func (s *Session) Connect(ctx context.Context) ConnectResult {
	if s.provider == nil {
		return ConnectResult{Reason: "no wallet provider available"}
	}

	s.mu.Lock()
	if s.inflight != nil {
		ch := s.inflight
		s.mu.Unlock()
		<-ch
		s.mu.Lock()
		res := s.last
		s.mu.Unlock()
		return res
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.mu.Unlock()

	res := s.doConnect(ctx)

	s.mu.Lock()
	s.last = res
	s.inflight = nil
	obs := s.snapshotObservers()
	state := State{Connected: s.connected, Account: s.account, ChainID: s.chainID}
	s.mu.Unlock()
	close(ch)

	if res.OK {
		for _, fn := range obs {
			fn(state)
		}
	}
	return res
}

func (s *Session) doConnect(ctx context.Context) ConnectResult {
	accts, err := s.provider.Accounts(ctx)
	if err != nil {
		return ConnectResult{Reason: err.Error()}
	}
	if len(accts) == 0 {
		return ConnectResult{Reason: "wallet has no accounts"}
	}
	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		return ConnectResult{Reason: err.Error()}
	}
	transactor, err := s.provider.NewTransactor(accts[0], chainID)
	if err != nil {
		return ConnectResult{Reason: err.Error()}
	}

	s.mu.Lock()
	s.account = accts[0]
	s.chainID = chainID
	s.transactor = transactor
	s.connected = true
	s.mu.Unlock()

	return ConnectResult{OK: true, Account: accts[0], ChainID: chainID}
}

// Disconnect clears all session fields. Calling it on an already disconnected
// session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	s.account = common.Address{}
	s.chainID = nil
	s.transactor = nil
	obs := s.snapshotObservers()
	s.mu.Unlock()

	for _, fn := range obs {
		fn(State{})
	}
}

// Start subscribes to provider events: a non-empty account change re-runs
// Connect to rebind the signer, an empty one disconnects, and a chain change
// tears the session down and fires the reset callback, because contract
// bindings are chain-specific.
func (s *Session) Start(ctx context.Context) error {
	events := make(chan Event, 8)
	stop, err := s.provider.Watch(events)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stopWatch = stop
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Kind {
				case AccountsChanged:
					if len(ev.Accounts) == 0 {
						s.Disconnect()
					} else {
						s.Connect(context.Background())
					}
				case ChainChanged:
					s.Disconnect()
					s.mu.Lock()
					reset := s.resetFn
					s.mu.Unlock()
					if reset != nil {
						reset()
					}
				}
			}
		}
	}()
	return nil
}

// Close stops watching the provider and drops all observers.
func (s *Session) Close() {
	s.mu.Lock()
	stop := s.stopWatch
	s.stopWatch = nil
	s.observers = map[int]func(State){}
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.Disconnect()
}

// OnReset registers the callback fired when the chain changes underneath the
// session. Callers are expected to rebuild application state from scratch.
func (s *Session) OnReset(fn func()) {
	s.mu.Lock()
	s.resetFn = fn
	s.mu.Unlock()
}

// OnChange registers an observer for session transitions and returns its
// unregister function.
func (s *Session) OnChange(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.connected
}

func (s *Session) ChainID() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

// Transactor returns signing options bound to the current account, carrying
// ctx for the submission call.
func (s *Session) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.transactor == nil {
		return nil, faults.New(faults.NoSession, "wallet.Transactor", "wallet not connected")
	}
	opts := *s.transactor
	opts.Context = ctx
	return &opts, nil
}

// callers hold mu
func (s *Session) snapshotObservers() []func(State) {
	obs := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	return obs
}
