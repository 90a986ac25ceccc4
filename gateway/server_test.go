package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"lmcv/core"
	"lmcv/fixed"
	"lmcv/state"
)

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixed.Wad) }

func rad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixed.Rad) }

func ray(hundredths int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(hundredths), fixed.Ray)
	return out.Quo(out, big.NewInt(100))
}

var (
	admin    = makeAddress(0x01)
	treasury = makeAddress(0x02)
	alice    = makeAddress(0x10)
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	node := core.NewNode(core.Config{ChainID: 1, Admin: admin, Treasury: treasury}, state.NewManager(), nil, nil)
	require.NoError(t, node.Bootstrap())
	require.NoError(t, node.SetProtocolDebtCeiling(admin, rad(1_000_000)))
	require.NoError(t, node.EditAcceptedCollateralType(admin, "FOO", ray(761), wad(10_000), big.NewInt(0), ray(70), false))
	require.NoError(t, node.PushCollateral(admin, alice, "FOO", wad(50)))
	require.NoError(t, node.Loan(alice, alice, []string{"FOO"}, []*big.Int{wad(50)}, wad(100)))

	srv := httptest.NewServer(NewServer(node, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz", nil))
}

func TestVaultEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var body vaultResponse
	status := get(t, srv, "/v1/vaults/0x0000000000000000000000000000000000000010", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0x0000000000000000000000000000000000000010", body.Owner)
	require.Equal(t, wad(50).String(), body.Locked["FOO"])
	require.Equal(t, wad(100).String(), body.NormalizedDebt)
	require.Equal(t, rad(100).String(), body.StableBalance)
	require.Equal(t, []string{"FOO"}, body.LockedList)
	// 50 * 7.61 * 0.7 = 266.35
	credit, _ := new(big.Int).SetString("26635", 10)
	credit.Mul(credit, fixed.Rad)
	credit.Quo(credit, big.NewInt(100))
	require.Equal(t, credit.String(), body.CreditValue)
}

func TestVaultEndpointRejectsBadAddress(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/vaults/zz", nil))
}

func TestGlobalsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var body globalsResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/globals", &body))
	require.Equal(t, wad(100).String(), body.TotalNormalizedDebt)
	require.Equal(t, "0x0000000000000000000000000000000000000002", body.Treasury)
}

func TestCollateralEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var body collateralResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/collateral/foo", &body))
	require.Equal(t, "FOO", body.Symbol)
	require.Equal(t, ray(761).String(), body.SpotPrice)
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/collateral/NOPE", nil))
}

func TestAuctionEndpointMissing(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/auctions/99", nil))
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/auctions/abc", nil))
}

func TestStakingEndpointEmptyPosition(t *testing.T) {
	srv := newTestServer(t)
	var body stakingResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/staking/0x0000000000000000000000000000000000000010", &body))
	require.Equal(t, "0", body.StakedShare)
}

func TestTransferEndpointMissing(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/transfers/nope", nil))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, get(t, srv, "/metrics", nil))
}
