// Package session tracks the single wallet account the daemon is bound to.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/wallet"
)

// Session is the bound account. The zero value is "disconnected".
type Session struct {
	ID        uuid.UUID
	Address   *common.Address
	ChainID   uint64
	Connected bool
}

// SameAccount reports whether both sessions are bound to the same address.
func (s Session) SameAccount(o Session) bool {
	switch {
	case s.Address == nil && o.Address == nil:
		return true
	case s.Address == nil || o.Address == nil:
		return false
	}
	return *s.Address == *o.Address
}

// Listener is told about every address change, including connect and disconnect.
type Listener func(prev, next Session)

// Binder polls a connector and owns the Session. Nothing else mutates it.
type Binder struct {
	conn    wallet.Connector
	chainID uint64
	log     *logging.Logger

	mu          sync.Mutex
	cur         Session
	switchTried uint64
	listeners   []Listener
}

func NewBinder(conn wallet.Connector, chainID uint64, log *logging.Logger) *Binder {
	return &Binder{conn: conn, chainID: chainID, log: log.WithComponent("session")}
}

func (b *Binder) Current() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Address is a shortcut for Current().Address.
func (b *Binder) Address() *common.Address { return b.Current().Address }

func (b *Binder) OnChange(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// Refresh reads accounts and chain from the connector and updates the session.
func (b *Binder) Refresh(ctx context.Context) error {
	accs, err := b.conn.Accounts(ctx)
	if isDisconnect(err) {
		b.log.Debug("wallet disconnected", logging.Err(err))
		b.update(Session{})
		return nil
	}
	if err != nil {
		return err
	}
	if len(accs) == 0 {
		b.update(Session{})
		return nil
	}
	chain, err := b.conn.ChainID(ctx)
	if isDisconnect(err) {
		b.log.Debug("wallet disconnected", logging.Err(err))
		b.update(Session{})
		return nil
	}
	if err != nil {
		return err
	}
	addr := accs[0]

	b.mu.Lock()
	next := b.cur
	if !next.Connected || next.Address == nil || *next.Address != addr {
		next = Session{ID: uuid.New(), Address: &addr, Connected: true}
	}
	next.ChainID = chain
	trySwitch := chain != b.chainID && b.switchTried != chain
	if trySwitch {
		b.switchTried = chain
	} else if chain == b.chainID {
		b.switchTried = 0
	}
	b.mu.Unlock()

	b.update(next)
	if trySwitch {
		b.switchChain(ctx, chain)
	}
	return nil
}

// isDisconnect reports the provider codes meaning the wallet went away.
// They end the session like an empty account list does.
func isDisconnect(err error) bool {
	return wallet.HasCode(err, wallet.CodeDisconnected) || wallet.HasCode(err, wallet.CodeChainDisconnected)
}

func (b *Binder) switchChain(ctx context.Context, from uint64) {
	err := b.conn.SwitchChain(ctx, b.chainID)
	switch {
	case err == nil:
		b.log.Info("requested chain switch", "from", from, "to", b.chainID)
	case errors.Is(err, wallet.ErrSwitchUnsupported):
		b.log.Warn("connected to wrong chain and connector cannot switch", "chain", from, "want", b.chainID)
	default:
		b.log.Warn("chain switch failed", "chain", from, logging.Err(err))
	}
}

func (b *Binder) update(next Session) {
	b.mu.Lock()
	prev := b.cur
	b.cur = next
	ls := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	if prev.SameAccount(next) && prev.Connected == next.Connected {
		return
	}
	if next.Address != nil {
		b.log.Info("session bound", logging.Address(*next.Address), "session", next.ID.String(), "chain", next.ChainID)
	} else {
		b.log.Info("session closed")
	}
	for _, l := range ls {
		l(prev, next)
	}
}

// Run refreshes on every tick until ctx is done.
func (b *Binder) Run(ctx context.Context, every time.Duration) {
	if err := b.Refresh(ctx); err != nil {
		b.log.Warn("session refresh failed", logging.Err(err))
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("session refresh failed", logging.Err(err))
			}
		}
	}
}
