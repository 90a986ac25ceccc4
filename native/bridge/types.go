package bridge

import "math/big"

// Transfer directions.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Transfer is one teleport leg recorded by a pipe: a local burn headed to a
// remote chain, or a remote burn minted locally. PayloadHash is the keccak
// hash of the RLP teleport payload and ties the record to the cross-chain
// message.
type Transfer struct {
	ID          string
	Direction   string
	ChainID     uint32
	User        [20]byte
	Recipient   [20]byte
	Amount      *big.Int
	Fee         *big.Int
	PayloadHash [32]byte
	CreatedAt   int64
}

// Clone returns a deep copy.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Amount = copyBigInt(t.Amount)
	clone.Fee = copyBigInt(t.Fee)
	return &clone
}

// teleportPayload is the RLP wire form of a teleport message.
type teleportPayload struct {
	TransferID string
	SrcChain   uint32
	DestChain  uint32
	User       [20]byte
	Recipient  [20]byte
	Amount     *big.Int
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
