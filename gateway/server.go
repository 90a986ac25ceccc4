// Package gateway serves the read-only HTTP API over the ledger node. All
// endpoints are queries; state changes enter the system through the node
// directly, never through HTTP.
package gateway

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lmcv/native/auction"
	"lmcv/native/bridge"
	"lmcv/native/staking"
	"lmcv/native/vault"
)

// ledger is the slice of the node the gateway reads from.
type ledger interface {
	GetVault(owner [20]byte) (*vault.Vault, error)
	GetCollateralType(symbol string) (*vault.CollateralType, error)
	GetGlobals() (*vault.Globals, error)
	GetDeficit(addr [20]byte) (*big.Int, error)
	CreditValue(user [20]byte) (*big.Int, error)
	DebtValue(user [20]byte) (*big.Int, error)
	PortfolioValue(user [20]byte, excludeLeveraged bool) (*big.Int, error)
	GetAuction(id uint64) (*auction.Auction, error)
	GetStakingPosition(owner [20]byte) (*staking.Position, error)
	GetStakingGlobals() (*staking.Globals, error)
	PendingRewards(user [20]byte, symbol string) (*big.Int, error)
	GetTransfer(id string) (*bridge.Transfer, error)
}

// Server exposes ledger queries over HTTP.
type Server struct {
	node ledger
	log  *slog.Logger
}

// NewServer constructs a gateway over a node.
func NewServer(node ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, log: logger}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/globals", s.handleGlobals)
		v1.Get("/vaults/{address}", s.handleVault)
		v1.Get("/collateral/{symbol}", s.handleCollateral)
		v1.Get("/auctions/{id}", s.handleAuction)
		v1.Get("/staking/{address}", s.handleStaking)
		v1.Get("/transfers/{id}", s.handleTransfer)
	})
	return r
}
