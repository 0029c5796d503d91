package domain

import "fmt"

// Agent represents an autonomous trading identity.
// Created on explicit sync or by the AgentCreated chain event; never deleted.
type Agent struct {
	ID               string // UUID
	OnChainID        int64  // identity on the arena contract
	Name             string
	WalletAddress    string // lowercased hex address; empty if no on-chain identity
	SignerCiphertext []byte // vault-encrypted signing key; nil for unsigned agents
	FundedBalance    float64
	ProfileConfig    string // raw JSON, validated by the profile package before use
	CreatedAt        int64  // Unix timestamp in milliseconds
	UpdatedAt        int64
}

// HasOnChainIdentity reports whether the agent can sign and submit chain transactions.
func (a *Agent) HasOnChainIdentity() bool {
	return a.OnChainID > 0 && a.WalletAddress != ""
}

// PlaceholderName returns the default name for an agent first seen on chain.
func PlaceholderName(onChainID int64) string {
	return fmt.Sprintf("agent-%d", onChainID)
}
