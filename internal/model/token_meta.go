package model

// TokenMeta is the descriptor of one external asset as reported by its ledger.
// It is captured once at bootstrap and never refreshed.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
