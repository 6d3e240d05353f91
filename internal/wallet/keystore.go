package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultChainPollInterval = 30 * time.Second

// KeystoreProvider is a Provider backed by a go-ethereum keystore directory
// and an RPC endpoint. Account events come from the keystore; chain changes
// are detected by polling eth_chainId, since a bare RPC endpoint has no push
// channel for that.
type KeystoreProvider struct {
	ks           *keystore.KeyStore
	client       *ethclient.Client
	passphrase   string
	pollInterval time.Duration
}

func NewKeystoreProvider(dir, passphrase string, client *ethclient.Client, pollInterval time.Duration) *KeystoreProvider {
	if pollInterval <= 0 {
		pollInterval = defaultChainPollInterval
	}
	return &KeystoreProvider{
		ks:           keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		client:       client,
		passphrase:   passphrase,
		pollInterval: pollInterval,
	}
}

func (p *KeystoreProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	accts := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	return id, nil
}

func (p *KeystoreProvider) NewTransactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	acct := accounts.Account{Address: account}
	if err := p.ks.Unlock(acct, p.passphrase); err != nil {
		return nil, fmt.Errorf("failed to unlock account %s: %w", account.Hex(), err)
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, acct, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, nil
}

func (p *KeystoreProvider) Watch(ch chan<- Event) (func(), error) {
	walletEvents := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(walletEvents)

	lastChain, err := p.client.ChainID(context.Background())
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	quit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-sub.Err():
				return
			case <-walletEvents:
				addrs, _ := p.Accounts(context.Background())
				select {
				case ch <- Event{Kind: AccountsChanged, Accounts: addrs}:
				case <-quit:
					return
				}
			case <-ticker.C:
				id, err := p.client.ChainID(context.Background())
				if err != nil || id == nil {
					continue
				}
				if id.Cmp(lastChain) != 0 {
					lastChain = id
					select {
					case ch <- Event{Kind: ChainChanged, ChainID: id}:
					case <-quit:
						return
					}
				}
			}
		}
	}()

	var once bool
	stop := func() {
		if once {
			return
		}
		once = true
		sub.Unsubscribe()
		close(quit)
	}
	return stop, nil
}
