package model

// TransferEvent is an incoming asset transfer observed on chain and routed to the pool.
type TransferEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Asset       string `json:"asset"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Removed     bool   `json:"removed"`
	Timestamp   uint64 `json:"timestamp"`
}
