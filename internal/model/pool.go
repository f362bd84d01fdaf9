package model

// PoolSide pairs an asset descriptor with the amount the pool tracks for it.
// Supply is a base-10 unsigned integer.
type PoolSide struct {
	Token  TokenMeta `json:"token"`
	Supply string    `json:"supply"`
}

// PoolRecord is the persisted pool ledger.
type PoolRecord struct {
	Owner     string   `json:"owner"`
	Ticker    string   `json:"ticker"`
	Decimals  uint16   `json:"decimals"`
	SideA     PoolSide `json:"side_a"`
	SideB     PoolSide `json:"side_b"`
	UpdatedAt string   `json:"updated_at"`
}
