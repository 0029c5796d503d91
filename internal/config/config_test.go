package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"agent-arena/internal/secrets"
	"agent-arena/internal/storage/memory"
)

const seedYAML = `
arenas:
  - token_address: "0xAAA111"
    name: "doge arena"
    on_chain_id: 3
  - token_address: "0xBBB222"
    name: "pepe arena"

agents:
  - name: alice
    on_chain_id: 7
    wallet_address: "0xWallet1"
    signer_key_hex: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
    funded_balance: 1000
    profile:
      minEvents1h: 5
      minVolume1h: 100
      maxTradesPerWindow: 10
      maxTradePct: 0.25
      maxPositionPct: 0.8
    arenas: ["0xAAA111", "0xBBB222"]
  - name: bob
    funded_balance: 500
    profile:
      maxTradesPerWindow: 5
      maxTradePct: 0.5
      maxPositionPct: 0.5
    arenas: ["0xaaa111"]
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(seed.Arenas) != 2 || len(seed.Agents) != 2 {
		t.Fatalf("Expected 2 arenas and 2 agents, got %d/%d", len(seed.Arenas), len(seed.Agents))
	}
	if seed.Agents[0].OnChainID != 7 || seed.Agents[0].FundedBalance != 1000 {
		t.Errorf("Wrong agent fields: %+v", seed.Agents[0])
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing token", "arenas:\n  - name: x\n"},
		{"duplicate token", "arenas:\n  - token_address: \"0xAAA\"\n  - token_address: \"0xaaa\"\n"},
		{"agent without name", "agents:\n  - funded_balance: 10\n"},
		{"negative balance", "agents:\n  - name: a\n    funded_balance: -1\n"},
		{"unknown arena ref", "agents:\n  - name: a\n    arenas: [\"0xnope\"]\n"},
		{"bad profile", "agents:\n  - name: a\n    profile:\n      maxTradePct: 3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeSeed(t, tc.yaml)); err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestApply_SeedsEverything(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stores := memory.NewStores()
	vault, err := secrets.NewVault(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	ctx := context.Background()

	if err := seed.Apply(ctx, stores, vault, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	arena, err := stores.Arenas.GetByOnChainID(ctx, 3)
	if err != nil {
		t.Fatalf("Seeded arena not found: %v", err)
	}
	if arena.TokenAddress != "0xaaa111" || arena.Name != "doge arena" {
		t.Errorf("Wrong arena: %+v", arena)
	}

	alice, err := stores.Agents.GetByOnChainID(ctx, 7)
	if err != nil {
		t.Fatalf("Seeded agent not found: %v", err)
	}
	if alice.WalletAddress != "0xwallet1" {
		t.Errorf("Wallet not lowercased: %q", alice.WalletAddress)
	}
	if len(alice.SignerCiphertext) == 0 {
		t.Fatal("Signer key was not encrypted into the agent")
	}
	signer, err := vault.Signer(alice.SignerCiphertext)
	if err != nil {
		t.Fatalf("Stored ciphertext must decrypt to a signer: %v", err)
	}
	want, _ := secrets.NewSignerFromHex("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if signer.Address() != want.Address() {
		t.Error("Decrypted signer does not match the seeded key")
	}

	// Alice splits 1000 across two arenas.
	pf, err := stores.Portfolios.Get(ctx, alice.ID, arena.ID)
	if err != nil {
		t.Fatalf("Seeded portfolio not found: %v", err)
	}
	if pf.Cash != 500 || pf.InitialCapital != 500 {
		t.Errorf("Expected 500 per arena, got (%f, %f)", pf.Cash, pf.InitialCapital)
	}

	regs, err := stores.Registrations.ListActiveByArena(ctx, arena.ID)
	if err != nil {
		t.Fatalf("List registrations: %v", err)
	}
	if len(regs) != 2 {
		t.Errorf("Expected alice and bob registered in the first arena, got %d", len(regs))
	}
}

func TestApply_Idempotent(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stores := memory.NewStores()
	vault, _ := secrets.NewVault(bytes.Repeat([]byte{0x42}, 32))
	ctx := context.Background()

	if err := seed.Apply(ctx, stores, vault, nil); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}
	alice1, _ := stores.Agents.GetByOnChainID(ctx, 7)

	if err := seed.Apply(ctx, stores, vault, nil); err != nil {
		t.Fatalf("Second apply failed: %v", err)
	}
	alice2, err := stores.Agents.GetByOnChainID(ctx, 7)
	if err != nil {
		t.Fatalf("Agent lost on re-apply: %v", err)
	}
	if alice1.ID != alice2.ID {
		t.Errorf("Re-apply created a new agent row: %s vs %s", alice1.ID, alice2.ID)
	}

	arenas, err := stores.Arenas.ListWithActiveRegistrations(ctx)
	if err != nil {
		t.Fatalf("List arenas: %v", err)
	}
	if len(arenas) != 2 {
		t.Errorf("Re-apply duplicated arenas: got %d", len(arenas))
	}
}

func TestApply_PreservesOpenedPortfolio(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stores := memory.NewStores()
	vault, _ := secrets.NewVault(bytes.Repeat([]byte{0x42}, 32))
	ctx := context.Background()
	if err := seed.Apply(ctx, stores, vault, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	alice, _ := stores.Agents.GetByOnChainID(ctx, 7)
	arena, _ := stores.Arenas.GetByOnChainID(ctx, 3)
	pf, _ := stores.Portfolios.Get(ctx, alice.ID, arena.ID)
	pf.Cash = 300
	pf.TokenUnits = 100 // opened position
	if err := stores.Portfolios.Update(ctx, pf); err != nil {
		t.Fatalf("Update portfolio: %v", err)
	}

	if err := seed.Apply(ctx, stores, vault, nil); err != nil {
		t.Fatalf("Re-apply failed: %v", err)
	}

	got, _ := stores.Portfolios.Get(ctx, alice.ID, arena.ID)
	if got.Cash != 300 || got.TokenUnits != 100 {
		t.Errorf("Re-apply touched an opened portfolio: (%f, %f)", got.Cash, got.TokenUnits)
	}
}

func TestApply_SignerKeyWithoutVaultFails(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := seed.Apply(context.Background(), memory.NewStores(), nil, nil); err == nil {
		t.Fatal("Expected error when a signer key is present but no vault is configured")
	}
}
