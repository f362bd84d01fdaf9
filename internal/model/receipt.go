package model

// ReceiptRecord is the serialized outcome of one incoming transfer.
type ReceiptRecord struct {
	Outcome     string `json:"outcome"`
	Sender      string `json:"sender"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Refund      string `json:"refund"`
	PayoutAsset string `json:"payout_asset,omitempty"`
	Payout      string `json:"payout,omitempty"`
	SupplyIn    string `json:"supply_in,omitempty"`
	SupplyOut   string `json:"supply_out,omitempty"`
	Residual    string `json:"residual,omitempty"`
}

// JournalEntry records what the pool did with a transfer event.
type JournalEntry struct {
	Event       TransferEvent  `json:"event"`
	Receipt     *ReceiptRecord `json:"receipt,omitempty"`
	Error       string         `json:"error,omitempty"`
	Refunded    string         `json:"refunded,omitempty"`
	RefundError string         `json:"refund_error,omitempty"`
	ProcessedAt string         `json:"processed_at"`
}
