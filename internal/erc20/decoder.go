package erc20

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
)

// TransferTopic is topic0 of Transfer(address,address,uint256).
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Transfer is a decoded ERC20 Transfer log.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

// DecodeTransfer decodes a Transfer log emitted by a token contract.
func DecodeTransfer(log types.Log) (Transfer, error) {
	if len(log.Topics) != 3 {
		return Transfer{}, fmt.Errorf("transfer log: expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferTopic {
		return Transfer{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	parsed, err := ABI()
	if err != nil {
		return Transfer{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	event := parsed.Events["Transfer"]

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return Transfer{}, fmt.Errorf("parse transfer topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return Transfer{}, fmt.Errorf("unpack transfer data: %w", err)
	}
	if len(values) != 1 {
		return Transfer{}, fmt.Errorf("unpack transfer data: expected 1 value, got %d", len(values))
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return Transfer{}, fmt.Errorf("transfer value: unsupported type %T", values[0])
	}
	amount, overflow := uint256.FromBig(raw)
	if overflow {
		return Transfer{}, fmt.Errorf("transfer value overflows 256 bits")
	}

	return Transfer{Token: log.Address, From: indexed.From, To: indexed.To, Amount: amount}, nil
}

// Event converts the transfer into the journaled form.
func (t Transfer) Event(chainID uint64, log types.Log, timestamp uint64) model.TransferEvent {
	return model.TransferEvent{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Asset:       t.Token.Hex(),
		Sender:      t.From.Hex(),
		Recipient:   t.To.Hex(),
		Amount:      t.Amount.Dec(),
		Removed:     log.Removed,
		Timestamp:   timestamp,
	}
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
