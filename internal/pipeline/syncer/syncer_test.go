package syncer

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/devaanshsinha/cogniflow/internal/chain/evm/rpc"
	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	latest       int64
	latestErr    error
	headers      map[int64]*rpc.Block
	incoming     []rpc.AssetTransfer
	outgoing     []rpc.AssetTransfer
	transfersErr error

	blockNumberCalls int
	headerCalls      []int64
	queries          []rpc.AssetTransfersQuery
}

func (f *fakeLedger) GetBlockNumber(ctx context.Context) (int64, error) {
	f.blockNumberCalls++
	return f.latest, f.latestErr
}

func (f *fakeLedger) GetBlockByNumber(ctx context.Context, number int64) (*rpc.Block, error) {
	f.headerCalls = append(f.headerCalls, number)
	return f.headers[number], nil
}

func (f *fakeLedger) GetAssetTransfers(ctx context.Context, q rpc.AssetTransfersQuery) ([]rpc.AssetTransfer, error) {
	f.queries = append(f.queries, q)
	if f.transfersErr != nil {
		return nil, f.transfersErr
	}
	if q.ToAddress != "" {
		return f.incoming, nil
	}
	return f.outgoing, nil
}

type fakeWalletRepo struct {
	advanced   []cursorAdvance
	advanceErr error
}

type cursorAdvance struct {
	chain   model.Chain
	address string
	block   int64
}

func (f *fakeWalletRepo) GetActive(ctx context.Context, chain model.Chain) ([]model.Wallet, error) {
	return nil, nil
}

func (f *fakeWalletRepo) FindByAddress(ctx context.Context, chain model.Chain, address string) (*model.Wallet, error) {
	return nil, nil
}

func (f *fakeWalletRepo) Upsert(ctx context.Context, w *model.Wallet) error { return nil }

func (f *fakeWalletRepo) AdvanceCursor(ctx context.Context, chain model.Chain, address string, block int64, at time.Time) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	f.advanced = append(f.advanced, cursorAdvance{chain: chain, address: address, block: block})
	return nil
}

type fakeSyncTransferRepo struct {
	batches     [][]*model.Transfer
	failOnBatch int // 1-based; 0 disables
}

func (f *fakeSyncTransferRepo) BulkUpsertTx(ctx context.Context, tx *sql.Tx, transfers []*model.Transfer) error {
	if f.failOnBatch > 0 && len(f.batches)+1 == f.failOnBatch {
		return errors.New("deadlock detected")
	}
	f.batches = append(f.batches, transfers)
	return nil
}

func (f *fakeSyncTransferRepo) DistinctTokens(ctx context.Context, chain model.Chain) ([]string, error) {
	return nil, nil
}

func (f *fakeSyncTransferRepo) ListUnembedded(ctx context.Context, chain model.Chain, limit int) ([]model.Transfer, error) {
	return nil, nil
}

func (f *fakeSyncTransferRepo) ListByTimeRange(ctx context.Context, chain model.Chain, from, to time.Time, limit int) ([]model.Transfer, error) {
	return nil, nil
}

func rawTransfer(uniqueID, hash, blockNum string) rpc.AssetTransfer {
	return rpc.AssetTransfer{
		UniqueID: uniqueID,
		Hash:     hash,
		BlockNum: blockNum,
		Category: "erc20",
		From:     "0x1111111111111111111111111111111111111111",
		To:       "0x2222222222222222222222222222222222222222",
		Asset:    "USDC",
		RawContract: rpc.RawContract{
			Value:   "0x2625a00",
			Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Decimal: "0x6",
		},
	}
}

func walletWithCursor(chain model.Chain, address string, cursor int64) *model.Wallet {
	return &model.Wallet{Chain: chain, Address: address, LastSyncedBlock: &cursor}
}

func newTestEngine(t *testing.T, ledger *fakeLedger, wallets *fakeWalletRepo, transfers *fakeSyncTransferRepo, opts Options) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(ledger, db, wallets, transfers, nil, opts, nil), mock
}

func TestSyncWalletSkipsRecentlySynced(t *testing.T) {
	ledger := &fakeLedger{latest: 200}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{},
		Options{SkipIfSyncedWithin: 5 * time.Minute})

	syncedAt := time.Now().Add(-time.Minute)
	w := walletWithCursor(model.ChainEthereum, "0xAbC", 100)
	w.LastSyncedAt = &syncedAt

	result, err := engine.SyncWallet(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, int64(100), result.LastSyncedBlock)
	assert.Zero(t, ledger.blockNumberCalls)
	assert.Empty(t, wallets.advanced)
}

func TestSyncWalletWindowAndCursorAdvance(t *testing.T) {
	ledger := &fakeLedger{latest: 200}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{},
		Options{MaxBlockSpan: 20})

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xAbC", 100))
	require.NoError(t, err)

	assert.Equal(t, int64(101), result.FromBlock)
	assert.Equal(t, int64(121), result.ToBlock)
	assert.True(t, result.HasMore)
	assert.Equal(t, int64(121), result.LastSyncedBlock)

	// Empty window still moves the cursor so the next run advances.
	require.Len(t, wallets.advanced, 1)
	assert.Equal(t, int64(121), wallets.advanced[0].block)
	assert.Equal(t, "0xabc", wallets.advanced[0].address)

	require.Len(t, ledger.queries, 2)
	for _, q := range ledger.queries {
		assert.Equal(t, int64(101), q.FromBlock)
		assert.Equal(t, int64(121), q.ToBlock)
	}
}

func TestSyncWalletNewWalletUsesLookback(t *testing.T) {
	ledger := &fakeLedger{latest: 50}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{},
		Options{LookbackBlocks: 100})

	result, err := engine.SyncWallet(context.Background(),
		&model.Wallet{Chain: model.ChainEthereum, Address: "0xabc"})
	require.NoError(t, err)

	// lookback past genesis clamps to zero
	assert.Equal(t, int64(0), result.FromBlock)
	assert.Equal(t, int64(50), result.ToBlock)
	assert.False(t, result.HasMore)
}

func TestSyncWalletAlreadyCurrent(t *testing.T) {
	ledger := &fakeLedger{latest: 200}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{}, Options{})

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 200))
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.False(t, result.HasMore)
	assert.Equal(t, int64(200), result.LastSyncedBlock)
	assert.Empty(t, ledger.queries)
	assert.Empty(t, wallets.advanced)
}

func TestSyncWalletDedupsAcrossDirections(t *testing.T) {
	// Self-transfers show up in both the incoming and outgoing queries.
	shared := rawTransfer("0xaaa:log:3", "0xaaa", "0x96")
	ledger := &fakeLedger{
		latest:   200,
		incoming: []rpc.AssetTransfer{shared},
		outgoing: []rpc.AssetTransfer{shared, rawTransfer("0xbbb:log:1", "0xbbb", "0x97")},
	}
	wallets := &fakeWalletRepo{}
	transfers := &fakeSyncTransferRepo{}
	engine, mock := newTestEngine(t, ledger, wallets, transfers, Options{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	require.Len(t, transfers.batches, 1)
	require.Len(t, transfers.batches[0], 2)
	assert.Equal(t, "0xaaa:log:3", transfers.batches[0][0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncWalletQuarantinesMalformedRecords(t *testing.T) {
	bad := rawTransfer("", "0xbad", "0x96") // no unique id, no log index
	ledger := &fakeLedger{
		latest:   200,
		incoming: []rpc.AssetTransfer{rawTransfer("0xaaa:log:3", "0xaaa", "0x96"), bad},
	}
	wallets := &fakeWalletRepo{}
	transfers := &fakeSyncTransferRepo{}
	engine, mock := newTestEngine(t, ledger, wallets, transfers, Options{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Quarantined)
	require.Len(t, wallets.advanced, 1)
}

func TestSyncWalletIgnoresUnsupportedCategories(t *testing.T) {
	nft := rawTransfer("0xccc:log:2", "0xccc", "0x96")
	nft.Category = "erc721"
	ledger := &fakeLedger{latest: 200, incoming: []rpc.AssetTransfer{nft}}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{}, Options{})

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Quarantined)
}

func TestSyncWalletBatchFailureKeepsEarlierBatches(t *testing.T) {
	ledger := &fakeLedger{
		latest: 200,
		incoming: []rpc.AssetTransfer{
			rawTransfer("0xaaa:log:1", "0xaaa", "0x96"),
			rawTransfer("0xbbb:log:1", "0xbbb", "0x96"),
			rawTransfer("0xccc:log:1", "0xccc", "0x96"),
		},
	}
	wallets := &fakeWalletRepo{}
	transfers := &fakeSyncTransferRepo{failOnBatch: 2}
	engine, mock := newTestEngine(t, ledger, wallets, transfers, Options{BatchSize: 1})
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist batch")

	// first batch committed, cursor untouched
	require.Len(t, transfers.batches, 1)
	assert.Empty(t, wallets.advanced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncWalletFetchErrorAborts(t *testing.T) {
	ledger := &fakeLedger{latest: 200, transfersErr: errors.New("upstream down")}
	wallets := &fakeWalletRepo{}
	engine, _ := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{}, Options{})

	_, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.Error(t, err)
	assert.Empty(t, wallets.advanced)
}

func TestSyncWalletCursorNeverTrailsProcessedBlocks(t *testing.T) {
	ledger := &fakeLedger{
		latest:   200,
		incoming: []rpc.AssetTransfer{rawTransfer("0xaaa:log:1", "0xaaa", "0x78")}, // block 120
	}
	wallets := &fakeWalletRepo{}
	engine, mock := newTestEngine(t, ledger, wallets, &fakeSyncTransferRepo{},
		Options{MaxBlockSpan: 50})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.SyncWallet(context.Background(),
		walletWithCursor(model.ChainEthereum, "0xabc", 100))
	require.NoError(t, err)

	// window top (151) wins over the highest processed block (120)
	assert.Equal(t, int64(151), result.LastSyncedBlock)
	assert.True(t, result.HasMore)
}
