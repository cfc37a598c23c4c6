package models

import "strings"

// NormalizeAddress trims and lowercases a token address. The result is the
// only form used as a map key anywhere in the service.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// TokenMetadata is the static description of a tracked token.
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}
