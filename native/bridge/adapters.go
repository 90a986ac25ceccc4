package bridge

import (
	"errors"
	"math/big"
)

// ErrBadRemoteAddress signals a remote address that does not fit 20 bytes.
var ErrBadRemoteAddress = errors.New("bridge pipe: bad remote address")

// LayerZeroAdapter maps the LayerZero OFT call shapes onto a pipe. Remote
// addresses travel as raw byte paths; only the leading 20 bytes identify the
// remote pipe.
type LayerZeroAdapter struct {
	pipe *Pipe
}

// NewLayerZeroAdapter wraps a pipe.
func NewLayerZeroAdapter(pipe *Pipe) *LayerZeroAdapter {
	return &LayerZeroAdapter{pipe: pipe}
}

// EstimateSendFee quotes the protocol fee for a send. The zro fee leg is
// always zero; the native gas fee is out of scope for the ledger core.
func (a *LayerZeroAdapter) EstimateSendFee(dstChainID uint16, toAddress []byte, amount *big.Int) (*big.Int, *big.Int, error) {
	to, err := addressFromBytes(toAddress)
	if err != nil {
		return nil, nil, err
	}
	fee, err := a.pipe.EstimateSendFee(uint32(dstChainID), to, amount)
	if err != nil {
		return nil, nil, err
	}
	return fee, big.NewInt(0), nil
}

// SendFrom burns locally and records the outbound teleport.
func (a *LayerZeroAdapter) SendFrom(from [20]byte, dstChainID uint16, toAddress []byte, amount *big.Int) (string, error) {
	to, err := addressFromBytes(toAddress)
	if err != nil {
		return "", err
	}
	return a.pipe.SendFrom(from, uint32(dstChainID), to, amount)
}

// LzReceive mints an inbound teleport from a trusted remote path.
func (a *LayerZeroAdapter) LzReceive(caller [20]byte, srcChainID uint16, srcAddress []byte, transferID string, recipient [20]byte, amount *big.Int) error {
	remote, err := addressFromBytes(srcAddress)
	if err != nil {
		return err
	}
	return a.pipe.Receive(caller, uint32(srcChainID), remote, transferID, recipient, amount)
}

// HyperlaneAdapter maps the Hyperlane token-router call shapes onto a pipe.
// Hyperlane addresses are 32-byte, left-padded.
type HyperlaneAdapter struct {
	pipe *Pipe
}

// NewHyperlaneAdapter wraps a pipe.
func NewHyperlaneAdapter(pipe *Pipe) *HyperlaneAdapter {
	return &HyperlaneAdapter{pipe: pipe}
}

// TransferRemote burns locally and records the outbound teleport, returning
// the transfer id used as the message identifier.
func (a *HyperlaneAdapter) TransferRemote(from [20]byte, destinationDomain uint32, recipient [32]byte, amount *big.Int) (string, error) {
	return a.pipe.SendFrom(from, destinationDomain, addressFromWord(recipient), amount)
}

// Handle mints an inbound teleport from a trusted origin router.
func (a *HyperlaneAdapter) Handle(caller [20]byte, origin uint32, sender [32]byte, transferID string, recipient [20]byte, amount *big.Int) error {
	return a.pipe.Receive(caller, origin, addressFromWord(sender), transferID, recipient, amount)
}

func addressFromBytes(raw []byte) ([20]byte, error) {
	var addr [20]byte
	if len(raw) < len(addr) {
		return addr, ErrBadRemoteAddress
	}
	copy(addr[:], raw[:len(addr)])
	return addr, nil
}

func addressFromWord(word [32]byte) [20]byte {
	var addr [20]byte
	copy(addr[:], word[12:])
	return addr
}
