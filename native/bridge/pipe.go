package bridge

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"lmcv/core/events"
	"lmcv/fixed"
)

var (
	errNilState  = errors.New("bridge pipe: state not configured")
	errNilLedger = errors.New("bridge pipe: ledger not configured")

	// ErrUntrustedRemote signals a chain without a registered trusted remote.
	ErrUntrustedRemote = errors.New("bridge pipe: untrusted remote")
	// ErrDuplicateTransfer signals a replayed inbound transfer id.
	ErrDuplicateTransfer = errors.New("bridge pipe: duplicate transfer")
	// ErrNotAdmin signals a privileged call from a non-admin address.
	ErrNotAdmin = errors.New("bridge pipe: caller is not an admin")
	// ErrInvalidAmount signals a malformed amount or fee.
	ErrInvalidAmount = errors.New("bridge pipe: invalid amount")
)

// engineState is the persistence surface a pipe requires.
type engineState interface {
	Transfer(id string) (*Transfer, error)
	PutTransfer(*Transfer) error
	TrustedRemote(chainID uint32) ([20]byte, bool, error)
	PutTrustedRemote(chainID uint32, remote [20]byte) error
}

// ledger is the slice of the vault engine a pipe drives: the privileged mint
// and burn entry points and the admin set. The pipe's module address must be
// rely'd on the vault.
type ledger interface {
	Mint(caller, user [20]byte, amount *big.Int) error
	Burn(caller, user [20]byte, amount *big.Int) error
	IsAdmin(addr [20]byte) (bool, error)
}

// Pipe is the chain-agnostic teleport engine: it burns the stable token
// locally on send and mints net of the teleport fee on receive. Transport
// adapters (LayerZero, Hyperlane) wrap it with their wire shapes.
type Pipe struct {
	state     engineState
	ledger    ledger
	emitter   events.Emitter
	nowFn     func() int64
	module    [20]byte
	collector [20]byte
	chainID   uint32

	teleportFee *big.Int
	newID       func() string
}

// NewPipe constructs a pipe with a zero teleport fee.
func NewPipe(chainID uint32) *Pipe {
	return &Pipe{
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		chainID:     chainID,
		teleportFee: big.NewInt(0),
		newID:       uuid.NewString,
	}
}

// SetState wires the pipe to the external persistence layer.
func (p *Pipe) SetState(state engineState) { p.state = state }

// SetLedger wires the pipe to the vault engine.
func (p *Pipe) SetLedger(l ledger) { p.ledger = l }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (p *Pipe) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetNowFunc overrides the record timestamp clock. Primarily for tests.
func (p *Pipe) SetNowFunc(now func() int64) {
	if now == nil {
		p.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	p.nowFn = now
}

// SetModuleAddress sets the address the pipe acts as on the vault engine.
func (p *Pipe) SetModuleAddress(addr [20]byte) { p.module = addr }

// SetFeeCollector sets the address receiving teleport fees on inbound mints.
func (p *Pipe) SetFeeCollector(addr [20]byte) { p.collector = addr }

// SetIDFunc overrides transfer id generation. Primarily for tests.
func (p *Pipe) SetIDFunc(newID func() string) {
	if newID == nil {
		p.newID = uuid.NewString
		return
	}
	p.newID = newID
}

func (p *Pipe) emit(evt events.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(evt)
}

func (p *Pipe) ready() error {
	if p == nil || p.state == nil {
		return errNilState
	}
	if p.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (p *Pipe) requireAdmin(caller [20]byte) error {
	ok, err := p.ledger.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// SetTeleportFee sets the Ray fraction of each inbound teleport kept as a
// protocol fee. Admin only.
func (p *Pipe) SetTeleportFee(caller [20]byte, fee *big.Int) error {
	if err := p.ready(); err != nil {
		return err
	}
	if fee == nil || fee.Sign() < 0 || fee.Cmp(fixed.Ray) >= 0 {
		return ErrInvalidAmount
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	p.teleportFee = new(big.Int).Set(fee)
	return nil
}

// RegisterTrustedRemote registers the remote pipe address for a destination
// chain. Admin only.
func (p *Pipe) RegisterTrustedRemote(caller [20]byte, chainID uint32, remote [20]byte) error {
	if err := p.ready(); err != nil {
		return err
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	return p.state.PutTrustedRemote(chainID, remote)
}

// EstimateSendFee returns the protocol fee that will be deducted on the
// destination side for a teleport of the given amount.
func (p *Pipe) EstimateSendFee(destChain uint32, to [20]byte, amount *big.Int) (*big.Int, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if _, ok, err := p.state.TrustedRemote(destChain); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrUntrustedRemote
	}
	return fixed.RayMul(amount, p.teleportFee), nil
}

// SendFrom burns the user's stable token locally and records the outbound
// teleport. Returns the transfer id carried in the cross-chain message.
func (p *Pipe) SendFrom(user [20]byte, destChain uint32, to [20]byte, amount *big.Int) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	if _, ok, err := p.state.TrustedRemote(destChain); err != nil {
		return "", err
	} else if !ok {
		return "", ErrUntrustedRemote
	}

	id := p.newID()
	hash, err := payloadHash(&teleportPayload{
		TransferID: id,
		SrcChain:   p.chainID,
		DestChain:  destChain,
		User:       user,
		Recipient:  to,
		Amount:     amount,
	})
	if err != nil {
		return "", err
	}
	if err := p.ledger.Burn(p.module, user, amount); err != nil {
		return "", err
	}
	record := &Transfer{
		ID:          id,
		Direction:   DirectionOutbound,
		ChainID:     destChain,
		User:        user,
		Recipient:   to,
		Amount:      new(big.Int).Set(amount),
		Fee:         big.NewInt(0),
		PayloadHash: hash,
		CreatedAt:   p.nowFn(),
	}
	if err := p.state.PutTransfer(record); err != nil {
		return "", err
	}
	p.emit(events.TeleportInitiated{
		TransferID: id,
		User:       user,
		DestChain:  destChain,
		Amount:     new(big.Int).Set(amount),
	})
	return id, nil
}

// Receive mints a teleport arriving from a trusted remote, net of the
// teleport fee, which goes to the fee collector. The caller is the transport
// adapter and must be rely'd; replayed transfer ids are rejected.
func (p *Pipe) Receive(caller [20]byte, srcChain uint32, remote [20]byte, transferID string, recipient [20]byte, amount *big.Int) error {
	if err := p.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := p.requireAdmin(caller); err != nil {
		return err
	}
	trusted, ok, err := p.state.TrustedRemote(srcChain)
	if err != nil {
		return err
	}
	if !ok || trusted != remote {
		return ErrUntrustedRemote
	}
	existing, err := p.state.Transfer(transferID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Direction == DirectionInbound {
		return ErrDuplicateTransfer
	}

	fee := fixed.RayMul(amount, p.teleportFee)
	net := new(big.Int).Sub(amount, fee)
	if err := p.ledger.Mint(p.module, recipient, net); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := p.ledger.Mint(p.module, p.collector, fee); err != nil {
			return err
		}
	}
	hash, err := payloadHash(&teleportPayload{
		TransferID: transferID,
		SrcChain:   srcChain,
		DestChain:  p.chainID,
		User:       remote,
		Recipient:  recipient,
		Amount:     amount,
	})
	if err != nil {
		return err
	}
	record := &Transfer{
		ID:          transferID,
		Direction:   DirectionInbound,
		ChainID:     srcChain,
		User:        remote,
		Recipient:   recipient,
		Amount:      new(big.Int).Set(amount),
		Fee:         fee,
		PayloadHash: hash,
		CreatedAt:   p.nowFn(),
	}
	if err := p.state.PutTransfer(record); err != nil {
		return err
	}
	p.emit(events.TeleportReceived{
		TransferID: transferID,
		Recipient:  recipient,
		SrcChain:   srcChain,
		Amount:     new(big.Int).Set(amount),
		Fee:        new(big.Int).Set(fee),
	})
	return nil
}

// GetTransfer returns a copy of a recorded transfer, or nil when unknown.
func (p *Pipe) GetTransfer(id string) (*Transfer, error) {
	if p == nil || p.state == nil {
		return nil, errNilState
	}
	return p.state.Transfer(id)
}

func payloadHash(payload *teleportPayload) ([32]byte, error) {
	var hash [32]byte
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return hash, err
	}
	copy(hash[:], crypto.Keccak256(encoded))
	return hash, nil
}
