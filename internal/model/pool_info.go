package model

// PoolInfo is the read-only view of the pool served to external callers.
type PoolInfo struct {
	Owner    string `json:"owner"`
	Ticker   string `json:"ticker"`
	Decimals uint16 `json:"decimals"`

	TokenAID            string `json:"token_a_id"`
	TokenAName          string `json:"token_a_name"`
	TokenASymbol        string `json:"token_a_symbol"`
	TokenASupply        string `json:"token_a_supply"`
	TokenASupplyDisplay string `json:"token_a_supply_display"`
	TokenADecimals      uint8  `json:"token_a_decimals"`

	TokenBID            string `json:"token_b_id"`
	TokenBName          string `json:"token_b_name"`
	TokenBSymbol        string `json:"token_b_symbol"`
	TokenBSupply        string `json:"token_b_supply"`
	TokenBSupplyDisplay string `json:"token_b_supply_display"`
	TokenBDecimals      uint8  `json:"token_b_decimals"`
}
