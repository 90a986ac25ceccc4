package staking

import "math/big"

// Position is one user's stake in the staking vault. RewardDebt holds, per
// reward token, the accumulator snapshot taken at the user's last stake
// mutation; Withdrawable holds realized but not yet withdrawn rewards.
type Position struct {
	Owner             [20]byte
	StakedShare       *big.Int
	LockedStakeable   *big.Int
	UnlockedStakeable *big.Int
	RewardDebt        map[string]*big.Int
	Withdrawable      map[string]*big.Int
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Owner:             p.Owner,
		StakedShare:       copyBigInt(p.StakedShare),
		LockedStakeable:   copyBigInt(p.LockedStakeable),
		UnlockedStakeable: copyBigInt(p.UnlockedStakeable),
		RewardDebt:        cloneAmounts(p.RewardDebt),
		Withdrawable:      cloneAmounts(p.Withdrawable),
	}
}

func (p *Position) ensureDefaults() {
	if p.StakedShare == nil {
		p.StakedShare = big.NewInt(0)
	}
	if p.LockedStakeable == nil {
		p.LockedStakeable = big.NewInt(0)
	}
	if p.UnlockedStakeable == nil {
		p.UnlockedStakeable = big.NewInt(0)
	}
	if p.RewardDebt == nil {
		p.RewardDebt = make(map[string]*big.Int)
	}
	if p.Withdrawable == nil {
		p.Withdrawable = make(map[string]*big.Int)
	}
}

// RewardToken is the per-token reward accounting: the lifetime injected
// amount and the monotone reward-per-staked-share accumulator in Ray.
type RewardToken struct {
	Symbol            string
	TotalRewardAmount *big.Int
	AccPerShare       *big.Int
}

// Clone returns a deep copy.
func (r *RewardToken) Clone() *RewardToken {
	if r == nil {
		return nil
	}
	return &RewardToken{
		Symbol:            r.Symbol,
		TotalRewardAmount: copyBigInt(r.TotalRewardAmount),
		AccPerShare:       copyBigInt(r.AccPerShare),
	}
}

// Globals is the vault-wide staking configuration and totals.
type Globals struct {
	StakedMintRatio   *big.Int
	StakedAmountLimit *big.Int
	TotalLocked       *big.Int
	TotalShare        *big.Int
	RewardTokens      []string
	Rewards           map[string]*RewardToken
}

// Clone returns a deep copy.
func (g *Globals) Clone() *Globals {
	if g == nil {
		return nil
	}
	clone := &Globals{
		StakedMintRatio:   copyBigInt(g.StakedMintRatio),
		StakedAmountLimit: copyBigInt(g.StakedAmountLimit),
		TotalLocked:       copyBigInt(g.TotalLocked),
		TotalShare:        copyBigInt(g.TotalShare),
		RewardTokens:      append([]string(nil), g.RewardTokens...),
	}
	if g.Rewards != nil {
		clone.Rewards = make(map[string]*RewardToken, len(g.Rewards))
		for k, v := range g.Rewards {
			clone.Rewards[k] = v.Clone()
		}
	}
	return clone
}

func (g *Globals) ensureDefaults() {
	if g.StakedMintRatio == nil {
		g.StakedMintRatio = big.NewInt(0)
	}
	if g.StakedAmountLimit == nil {
		g.StakedAmountLimit = big.NewInt(0)
	}
	if g.TotalLocked == nil {
		g.TotalLocked = big.NewInt(0)
	}
	if g.TotalShare == nil {
		g.TotalShare = big.NewInt(0)
	}
	if g.Rewards == nil {
		g.Rewards = make(map[string]*RewardToken)
	}
}

func cloneAmounts(src map[string]*big.Int) map[string]*big.Int {
	if src == nil {
		return nil
	}
	out := make(map[string]*big.Int, len(src))
	for k, v := range src {
		out[k] = copyBigInt(v)
	}
	return out
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
