package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"lmcv/config"
	"lmcv/core"
	"lmcv/fixed"
	"lmcv/gateway"
	"lmcv/observability/logging"
	"lmcv/observability/metrics"
	"lmcv/state"
	"lmcv/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "lmcvd.toml", "path to daemon configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("lmcvd", "").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := storage.NewStore(db)

	manager := state.NewManager()
	snap, err := store.Load()
	if err != nil {
		logger.Error("load snapshot", "error", err)
		os.Exit(1)
	}

	admin, _ := cfg.Admin()
	treasury, _ := cfg.Treasury()
	node := core.NewNode(core.Config{
		ChainID:  cfg.ChainID,
		Admin:    admin,
		Treasury: treasury,
	}, manager, metrics.Ledger(), logger)

	if snap != nil {
		manager.Restore(snap)
		logger.Info("state restored", "vaults", len(snap.Vaults), "auctions", len(snap.Auctions))
	} else {
		if err := node.Bootstrap(); err != nil {
			logger.Error("bootstrap", "error", err)
			os.Exit(1)
		}
		if err := registerCollateral(node, cfg, admin); err != nil {
			logger.Error("register collateral", "error", err)
			os.Exit(1)
		}
	}
	if err := applyConfig(node, cfg, admin); err != nil {
		logger.Error("apply config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           gateway.NewServer(node, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway", "error", err)
			stop()
		}
	}()

	accrual := time.NewTicker(time.Duration(cfg.AccrualIntervalSeconds) * time.Second)
	defer accrual.Stop()
	snapshot := time.NewTicker(time.Duration(cfg.SnapshotIntervalSeconds) * time.Second)
	defer snapshot.Stop()

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-accrual.C:
			if err := node.AccrueInterest(); err != nil {
				logger.Warn("accrue interest", "error", err)
			}
			if g, err := node.GetGlobals(); err == nil {
				metrics.Ledger().SetTotals(fixed.MulWadRay(g.TotalNormalizedDebt, g.AccumulatedRate), g.TotalStable)
			}
		case <-snapshot.C:
			if err := store.Save(manager.Snapshot()); err != nil {
				logger.Warn("save snapshot", "error", err)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", "error", err)
	}
	if err := store.Save(manager.Snapshot()); err != nil {
		logger.Error("final snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// registerCollateral runs only on a fresh ledger, so oracle-driven spot
// prices are never clobbered by a restart.
func registerCollateral(node *core.Node, cfg *config.Config, admin [20]byte) error {
	for _, entry := range cfg.Collateral {
		spot, err := fixed.ParseRay(entry.SpotPrice)
		if err != nil {
			return err
		}
		ratio, err := fixed.ParseRay(entry.CreditRatio)
		if err != nil {
			return err
		}
		limit, err := fixed.ParseWad(entry.LockedAmountLimit)
		if err != nil {
			return err
		}
		dust := big.NewInt(0)
		if entry.DustLevel != "" {
			if dust, err = fixed.ParseWad(entry.DustLevel); err != nil {
				return err
			}
		}
		if err := node.EditAcceptedCollateralType(admin, entry.Symbol, spot, limit, dust, ratio, entry.Leveraged); err != nil {
			return err
		}
	}
	return nil
}

// applyConfig pushes the engine-level settings on every boot; all of the
// setters are idempotent.
func applyConfig(node *core.Node, cfg *config.Config, admin [20]byte) error {
	if cfg.Liquidation.LotSize != "" {
		lot, err := fixed.ParseRad(cfg.Liquidation.LotSize)
		if err != nil {
			return err
		}
		if err := node.SetLotSize(admin, lot); err != nil {
			return err
		}
	}
	penalty, err := fixed.ParseRay(cfg.Liquidation.Penalty)
	if err != nil {
		return err
	}
	if err := node.SetLiquidationPenalty(admin, penalty); err != nil {
		return err
	}
	if cfg.Auction.DurationSeconds > 0 || cfg.Auction.BidWindowSeconds > 0 {
		node.SetAuctionWindows(cfg.Auction.DurationSeconds, cfg.Auction.BidWindowSeconds)
	}

	fee, err := fixed.ParseRay(cfg.Bridge.TeleportFee)
	if err != nil {
		return err
	}
	if err := node.SetTeleportFee(admin, fee); err != nil {
		return err
	}
	for chain, remote := range cfg.Bridge.TrustedRemotes {
		chainID, err := strconv.ParseUint(chain, 10, 32)
		if err != nil {
			return err
		}
		addr, err := config.ParseAddress(remote)
		if err != nil {
			return err
		}
		if err := node.RegisterTrustedRemote(admin, uint32(chainID), addr); err != nil {
			return err
		}
	}

	ratio, err := fixed.ParseRay(cfg.Staking.MintRatio)
	if err != nil {
		return err
	}
	if err := node.SetStakedMintRatio(admin, ratio); err != nil {
		return err
	}
	if cfg.Staking.AmountLimit != "" {
		limit, err := fixed.ParseWad(cfg.Staking.AmountLimit)
		if err != nil {
			return err
		}
		if err := node.SetStakedAmountLimit(admin, limit); err != nil {
			return err
		}
	}
	for _, symbol := range cfg.Staking.RewardTokens {
		if err := node.RegisterRewardToken(admin, symbol); err != nil {
			return err
		}
	}

	if cfg.PSM.Symbol != "" {
		mintFee, err := parseRayOrZero(cfg.PSM.MintFee)
		if err != nil {
			return err
		}
		burnFee, err := parseRayOrZero(cfg.PSM.BurnFee)
		if err != nil {
			return err
		}
		if err := node.ConfigurePSM(cfg.PSM.Symbol, cfg.PSM.Decimals, mintFee, burnFee); err != nil {
			return err
		}
	}
	return nil
}

func parseRayOrZero(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	return fixed.ParseRay(s)
}
