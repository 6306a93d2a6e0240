package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/baseminer/internal/logging"
	"github.com/ligun0805/baseminer/internal/wallet"
)

type fakeConnector struct {
	mu        sync.Mutex
	accounts  []common.Address
	chain     uint64
	switchErr error
	switches  []uint64
	accErr    error
	chainErr  error
}

func (f *fakeConnector) Accounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, f.accErr
}

func (f *fakeConnector) ChainID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chain, f.chainErr
}

func (f *fakeConnector) SwitchChain(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, id)
	if f.switchErr == nil {
		f.chain = id
	}
	return f.switchErr
}

func (f *fakeConnector) Provider() wallet.Provider { return nil }

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestBinderConnectDisconnect(t *testing.T) {
	conn := &fakeConnector{chain: 8453}
	b := NewBinder(conn, 8453, logging.NewNopLogger())
	var changes []Session
	b.OnChange(func(_, next Session) { changes = append(changes, next) })
	ctx := context.Background()

	require.NoError(t, b.Refresh(ctx))
	assert.False(t, b.Current().Connected)
	assert.Empty(t, changes, "disconnected to disconnected is not a change")

	conn.accounts = []common.Address{alice}
	require.NoError(t, b.Refresh(ctx))
	cur := b.Current()
	require.True(t, cur.Connected)
	assert.Equal(t, alice, *cur.Address)
	assert.NotEqual(t, uuid.Nil, cur.ID)
	firstID := cur.ID

	require.NoError(t, b.Refresh(ctx))
	assert.Equal(t, firstID, b.Current().ID, "same account keeps its session")
	assert.Len(t, changes, 1)

	conn.accounts = nil
	require.NoError(t, b.Refresh(ctx))
	assert.False(t, b.Current().Connected)
	assert.Nil(t, b.Address())
	assert.Len(t, changes, 2)

	conn.accounts = []common.Address{alice}
	require.NoError(t, b.Refresh(ctx))
	assert.NotEqual(t, firstID, b.Current().ID, "reconnect opens a new session")
}

func TestBinderAccountSwitchNotifies(t *testing.T) {
	conn := &fakeConnector{chain: 8453, accounts: []common.Address{alice}}
	b := NewBinder(conn, 8453, logging.NewNopLogger())
	var prevs, nexts []*common.Address
	b.OnChange(func(prev, next Session) {
		prevs = append(prevs, prev.Address)
		nexts = append(nexts, next.Address)
	})
	require.NoError(t, b.Refresh(context.Background()))
	conn.accounts = []common.Address{bob}
	require.NoError(t, b.Refresh(context.Background()))

	require.Len(t, nexts, 2)
	assert.Nil(t, prevs[0])
	assert.Equal(t, alice, *prevs[1])
	assert.Equal(t, bob, *nexts[1])
}

func TestBinderSwitchesWrongChainOnce(t *testing.T) {
	conn := &fakeConnector{chain: 1, accounts: []common.Address{alice}, switchErr: errors.New("user rejected")}
	b := NewBinder(conn, 8453, logging.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, b.Refresh(ctx))
	require.NoError(t, b.Refresh(ctx))
	assert.Equal(t, []uint64{8453}, conn.switches, "one request per wrong chain")
	assert.Equal(t, uint64(1), b.Current().ChainID)

	conn.switchErr = nil
	conn.chain = 10
	require.NoError(t, b.Refresh(ctx))
	assert.Equal(t, []uint64{8453, 8453}, conn.switches)
}

func TestBinderAccountsError(t *testing.T) {
	conn := &fakeConnector{accErr: errors.New("boom")}
	b := NewBinder(conn, 8453, logging.NewNopLogger())
	require.Error(t, b.Refresh(context.Background()))
	assert.False(t, b.Current().Connected)
}

func TestBinderDisconnectCodesEndSession(t *testing.T) {
	conn := &fakeConnector{chain: 8453, accounts: []common.Address{alice}}
	b := NewBinder(conn, 8453, logging.NewNopLogger())
	var changes []Session
	b.OnChange(func(_, next Session) { changes = append(changes, next) })
	ctx := context.Background()

	require.NoError(t, b.Refresh(ctx))
	require.True(t, b.Current().Connected)

	conn.accErr = &wallet.ProviderError{Code: wallet.CodeDisconnected, Message: "Disconnected"}
	require.NoError(t, b.Refresh(ctx))
	assert.False(t, b.Current().Connected)
	assert.Nil(t, b.Address())
	require.Len(t, changes, 2)
	assert.False(t, changes[1].Connected)

	conn.accErr = nil
	require.NoError(t, b.Refresh(ctx))
	require.True(t, b.Current().Connected)

	conn.chainErr = &wallet.ProviderError{Code: wallet.CodeChainDisconnected, Message: "Chain disconnected"}
	require.NoError(t, b.Refresh(ctx))
	assert.False(t, b.Current().Connected)
	assert.Len(t, changes, 4)
}

func TestSameAccount(t *testing.T) {
	a, a2 := alice, alice
	assert.True(t, Session{}.SameAccount(Session{}))
	assert.True(t, Session{Address: &a}.SameAccount(Session{Address: &a2}))
	assert.False(t, Session{Address: &a}.SameAccount(Session{}))
}
