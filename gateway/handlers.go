package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lmcv/native/vault"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func parseAddressParam(r *http.Request, name string) ([20]byte, bool) {
	var addr [20]byte
	raw := strings.TrimPrefix(chi.URLParam(r, name), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 20 {
		return addr, false
	}
	copy(addr[:], decoded)
	return addr, true
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func amountMap(src map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(src))
	for symbol, amount := range src {
		out[symbol] = amountString(amount)
	}
	return out
}

func addressHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

type vaultResponse struct {
	Owner          string            `json:"owner"`
	Unlocked       map[string]string `json:"unlocked"`
	Locked         map[string]string `json:"locked"`
	LockedList     []string          `json:"lockedList"`
	NormalizedDebt string            `json:"normalizedDebt"`
	StableBalance  string            `json:"stableBalance"`
	CreditValue    string            `json:"creditValue"`
	DebtValue      string            `json:"debtValue"`
	PortfolioValue string            `json:"portfolioValue"`
	Deficit        string            `json:"deficit"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddressParam(r, "address")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "malformed address")
		return
	}
	v, err := s.node.GetVault(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	credit, err := s.node.CreditValue(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	debt, err := s.node.DebtValue(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	portfolio, err := s.node.PortfolioValue(owner, false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	deficit, err := s.node.GetDeficit(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, vaultResponse{
		Owner:          addressHex(v.Owner),
		Unlocked:       amountMap(v.Unlocked),
		Locked:         amountMap(v.Locked),
		LockedList:     append([]string{}, v.LockedList...),
		NormalizedDebt: amountString(v.NormalizedDebt),
		StableBalance:  amountString(v.StableBalance),
		CreditValue:    amountString(credit),
		DebtValue:      amountString(debt),
		PortfolioValue: amountString(portfolio),
		Deficit:        amountString(deficit),
	})
}

type collateralResponse struct {
	Symbol            string `json:"symbol"`
	SpotPrice         string `json:"spotPrice"`
	LockedAmount      string `json:"lockedAmount"`
	LockedAmountLimit string `json:"lockedAmountLimit"`
	DustLevel         string `json:"dustLevel"`
	CreditRatio       string `json:"creditRatio"`
	Leveraged         bool   `json:"leveraged"`
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request) {
	ct, err := s.node.GetCollateralType(chi.URLParam(r, "symbol"))
	if err != nil {
		if errors.Is(err, vault.ErrUnknownCollateral) {
			s.writeError(w, http.StatusNotFound, "unknown collateral type")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, collateralResponse{
		Symbol:            ct.Symbol,
		SpotPrice:         amountString(ct.SpotPrice),
		LockedAmount:      amountString(ct.LockedAmount),
		LockedAmountLimit: amountString(ct.LockedAmountLimit),
		DustLevel:         amountString(ct.DustLevel),
		CreditRatio:       amountString(ct.CreditRatio),
		Leveraged:         ct.Leveraged,
	})
}

type globalsResponse struct {
	AccumulatedRate     string `json:"accumulatedRate"`
	RatePerSecond       string `json:"ratePerSecond"`
	LastAccrual         int64  `json:"lastAccrual"`
	TotalNormalizedDebt string `json:"totalNormalizedDebt"`
	TotalStable         string `json:"totalStable"`
	ProtocolDebtCeiling string `json:"protocolDebtCeiling"`
	TotalDeficit        string `json:"totalDeficit"`
	MintFee             string `json:"mintFee"`
	Treasury            string `json:"treasury"`
}

func (s *Server) handleGlobals(w http.ResponseWriter, r *http.Request) {
	g, err := s.node.GetGlobals()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if g == nil {
		s.writeError(w, http.StatusNotFound, "ledger not bootstrapped")
		return
	}
	s.writeJSON(w, http.StatusOK, globalsResponse{
		AccumulatedRate:     amountString(g.AccumulatedRate),
		RatePerSecond:       amountString(g.RatePerSecond),
		LastAccrual:         g.LastAccrual,
		TotalNormalizedDebt: amountString(g.TotalNormalizedDebt),
		TotalStable:         amountString(g.TotalStable),
		ProtocolDebtCeiling: amountString(g.ProtocolDebtCeiling),
		TotalDeficit:        amountString(g.TotalDeficit),
		MintFee:             amountString(g.MintFee),
		Treasury:            addressHex(g.Treasury),
	})
}

type auctionResponse struct {
	ID            uint64            `json:"id"`
	LotSymbols    []string          `json:"lotSymbols"`
	OriginalLot   map[string]string `json:"originalLot"`
	Lot           map[string]string `json:"lot"`
	AskingAmount  string            `json:"askingAmount"`
	DebtBid       string            `json:"debtBid"`
	CurrentWinner string            `json:"currentWinner"`
	Liquidated    string            `json:"liquidated"`
	AuctionExpiry int64             `json:"auctionExpiry"`
	BidExpiry     int64             `json:"bidExpiry"`
	LotFraction   string            `json:"lotFraction"`
}

func (s *Server) handleAuction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed auction id")
		return
	}
	a, err := s.node.GetAuction(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		s.writeError(w, http.StatusNotFound, "no open auction with that id")
		return
	}
	s.writeJSON(w, http.StatusOK, auctionResponse{
		ID:            a.ID,
		LotSymbols:    append([]string{}, a.LotSymbols...),
		OriginalLot:   amountMap(a.OriginalLot),
		Lot:           amountMap(a.Lot),
		AskingAmount:  amountString(a.AskingAmount),
		DebtBid:       amountString(a.DebtBid),
		CurrentWinner: addressHex(a.CurrentWinner),
		Liquidated:    addressHex(a.Liquidated),
		AuctionExpiry: a.AuctionExpiry,
		BidExpiry:     a.BidExpiry,
		LotFraction:   amountString(a.LotFraction),
	})
}

type stakingResponse struct {
	Owner             string            `json:"owner"`
	StakedShare       string            `json:"stakedShare"`
	LockedStakeable   string            `json:"lockedStakeable"`
	UnlockedStakeable string            `json:"unlockedStakeable"`
	Withdrawable      map[string]string `json:"withdrawable"`
	Pending           map[string]string `json:"pending"`
}

func (s *Server) handleStaking(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddressParam(r, "address")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "malformed address")
		return
	}
	p, err := s.node.GetStakingPosition(owner)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	g, err := s.node.GetStakingGlobals()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pending := make(map[string]string, len(g.RewardTokens))
	for _, symbol := range g.RewardTokens {
		amount, err := s.node.PendingRewards(owner, symbol)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		pending[symbol] = amountString(amount)
	}
	s.writeJSON(w, http.StatusOK, stakingResponse{
		Owner:             addressHex(p.Owner),
		StakedShare:       amountString(p.StakedShare),
		LockedStakeable:   amountString(p.LockedStakeable),
		UnlockedStakeable: amountString(p.UnlockedStakeable),
		Withdrawable:      amountMap(p.Withdrawable),
		Pending:           pending,
	})
}

type transferResponse struct {
	ID          string `json:"id"`
	Direction   string `json:"direction"`
	ChainID     uint32 `json:"chainId"`
	User        string `json:"user"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	PayloadHash string `json:"payloadHash"`
	CreatedAt   int64  `json:"createdAt"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := s.node.GetTransfer(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		s.writeError(w, http.StatusNotFound, "unknown transfer")
		return
	}
	s.writeJSON(w, http.StatusOK, transferResponse{
		ID:          t.ID,
		Direction:   t.Direction,
		ChainID:     t.ChainID,
		User:        addressHex(t.User),
		Recipient:   addressHex(t.Recipient),
		Amount:      amountString(t.Amount),
		Fee:         amountString(t.Fee),
		PayloadHash: "0x" + hex.EncodeToString(t.PayloadHash[:]),
		CreatedAt:   t.CreatedAt,
	})
}
