package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/ledgercert/pkg/storage"
	"github.com/tcfw/ledgercert/pkg/storage/storagetest"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemStore) {
	t.Helper()

	store := storage.NewMemStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ledgercert_test_total", Help: "test"}))

	a, err := NewAPI(store, WithGatherer(reg))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return srv, store
}

func seed(t *testing.T, store *storage.MemStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.PutBlock(ctx, 1, 2, storagetest.Block(t, 1, 2, "payload")))
	require.NoError(t, store.PutQC(ctx, 1, 2, storagetest.QC(1, 2)))
	require.NoError(t, store.PutEpochState(ctx, storagetest.EpochState(1, 4)))
	require.NoError(t, store.PutLedgerInfo(ctx, 1, storagetest.LedgerInfo(1, 3, storagetest.EpochState(2, 5))))
	require.NoError(t, store.PutRandomness(ctx, 7, types.RandomnessSeed{0xca, 0xfe}))
}

func TestRoutes(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	tests := map[string]int{
		"/consensus/latest_ledger_info": http.StatusOK,
		"/consensus/ledger_info/1":      http.StatusOK,
		"/consensus/ledger_info/9":      http.StatusNotFound,
		"/consensus/ledger_info/x":      http.StatusBadRequest,
		"/consensus/block/1/2":          http.StatusOK,
		"/consensus/block/1/3":          http.StatusNotFound,
		"/consensus/block/1/-1":         http.StatusBadRequest,
		"/consensus/qc/1/2":             http.StatusOK,
		"/consensus/qc/2/2":             http.StatusNotFound,
		"/consensus/validator_count/2":  http.StatusOK,
		"/consensus/validator_count/3":  http.StatusNotFound,
		"/dkg/status":                   http.StatusOK,
		"/dkg/randomness/7":             http.StatusOK,
		"/dkg/randomness/8":             http.StatusNotFound,
		"/metrics":                      http.StatusOK,
		"/nope":                         http.StatusNotFound,
	}

	for path, status := range tests {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, status, resp.StatusCode, path)
	}
}

func TestNotFoundBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/consensus/latest_ledger_info")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}

func TestRandomnessIsHex(t *testing.T) {
	srv, store := newTestServer(t)
	seed(t, store)

	resp, err := http.Get(srv.URL + "/dkg/randomness/7")
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "0xcafe", out["randomness"])
	assert.Equal(t, float64(7), out["block_number"])
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestServer(t)
	seed(t, store)

	c := NewClient(srv.URL)

	li, err := c.LatestLedgerInfo(ctx)
	require.NoError(t, err)
	assert.True(t, li.Equal(storagetest.LedgerInfo(1, 3, storagetest.EpochState(2, 5))))

	byEpoch, err := c.LedgerInfoByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.True(t, byEpoch.Equal(li))

	b, err := c.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, b.Equal(storagetest.Block(t, 1, 2, "payload")))

	qc, err := c.QC(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, storagetest.QC(1, 2), qc)

	n, err := c.ValidatorCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	r, err := c.Randomness(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, types.RandomnessSeed{0xca, 0xfe}, r)

	_, err = c.Block(ctx, 5, 5)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

type staticPeers []peer.AddrInfo

func (s staticPeers) Peers() []peer.AddrInfo { return s }

func TestPeers(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)

	peers := staticPeers{{ID: id, Addrs: []multiaddr.Multiaddr{multiaddr.StringCast("/ip4/127.0.0.1/tcp/8712")}}}

	a, err := NewAPI(storage.NewMemStore(), WithPeers(peers))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := NewClient(srv.URL).Peers(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, id.String(), res[0].ID)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/8712"}, res[0].Addrs)
}

func TestPeersWithoutHost(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := NewClient(srv.URL).Peers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res)
}

type staticEpoch struct {
	v *validator.Verifier
}

func (s staticEpoch) Latest() (*validator.Verifier, bool) { return s.v, s.v != nil }

func TestDKGStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("from store", func(t *testing.T) {
		srv, store := newTestServer(t)
		seed(t, store)

		st, err := NewClient(srv.URL).DKGStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, &DKGStatusResponse{Epoch: 1, Round: 3, BlockNumber: 1003, ParticipatingNodes: 4}, st)
	})

	t.Run("live epoch", func(t *testing.T) {
		store := storage.NewMemStore()
		seed(t, store)

		set := validatortest.NewSet(t, 2, 1, 1, 1)
		a, err := NewAPI(store, WithEpochs(staticEpoch{set.Verifier}))
		require.NoError(t, err)
		srv := httptest.NewServer(a.Handler())
		defer srv.Close()

		st, err := NewClient(srv.URL).DKGStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, &DKGStatusResponse{Epoch: 2, Round: 3, BlockNumber: 1003, ParticipatingNodes: 3}, st)
	})

	t.Run("nothing known", func(t *testing.T) {
		a, err := NewAPI(storage.NewMemStore(), WithEpochs(staticEpoch{}))
		require.NoError(t, err)
		srv := httptest.NewServer(a.Handler())
		defer srv.Close()

		_, err = NewClient(srv.URL).DKGStatus(ctx)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
