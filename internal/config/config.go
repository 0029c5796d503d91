// Package config loads the YAML seed file that bootstraps arenas and agents
// without waiting for chain events. Seeding is idempotent: applying the same
// file twice leaves the database unchanged.
package config

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"agent-arena/internal/domain"
	"agent-arena/internal/profile"
	"agent-arena/internal/secrets"
	"agent-arena/internal/storage"
)

// SeedArena declares one arena to create.
type SeedArena struct {
	TokenAddress string `yaml:"token_address"`
	Name         string `yaml:"name"`
	OnChainID    int64  `yaml:"on_chain_id"`
}

// SeedAgent declares one agent, its profile, and the arenas it trades in.
// SignerKeyHex, when present, is encrypted into the vault at apply time and
// never persisted in the clear.
type SeedAgent struct {
	Name          string         `yaml:"name"`
	OnChainID     int64          `yaml:"on_chain_id"`
	WalletAddress string         `yaml:"wallet_address"`
	SignerKeyHex  string         `yaml:"signer_key_hex"`
	FundedBalance float64        `yaml:"funded_balance"`
	Profile       map[string]any `yaml:"profile"`
	Arenas        []string       `yaml:"arenas"` // token addresses
}

// Seed is the root of the seed file.
type Seed struct {
	Arenas []SeedArena `yaml:"arenas"`
	Agents []SeedAgent `yaml:"agents"`
}

// Load reads and validates a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	tokens := make(map[string]struct{}, len(s.Arenas))
	for i, a := range s.Arenas {
		if a.TokenAddress == "" {
			return fmt.Errorf("arena %d: token_address is required", i)
		}
		token := strings.ToLower(a.TokenAddress)
		if _, dup := tokens[token]; dup {
			return fmt.Errorf("arena %d: duplicate token_address %s", i, token)
		}
		tokens[token] = struct{}{}
	}

	for i, a := range s.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: name is required", i)
		}
		if a.FundedBalance < 0 {
			return fmt.Errorf("agent %q: funded_balance must be >= 0", a.Name)
		}
		for _, token := range a.Arenas {
			if _, ok := tokens[strings.ToLower(token)]; !ok {
				return fmt.Errorf("agent %q: unknown arena token %s", a.Name, token)
			}
		}
		if a.Profile != nil {
			raw, err := json.Marshal(a.Profile)
			if err != nil {
				return fmt.Errorf("agent %q: encode profile: %w", a.Name, err)
			}
			if _, err := profile.Parse(string(raw)); err != nil {
				return fmt.Errorf("agent %q: %w", a.Name, err)
			}
		}
	}
	return nil
}

// Apply seeds arenas, agents, registrations and portfolios into the stores.
// The vault may be nil when no agent carries a signer key.
func (s *Seed) Apply(ctx context.Context, stores *storage.Stores, vault *secrets.Vault, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	arenaByToken := make(map[string]*domain.Arena, len(s.Arenas))
	for _, sa := range s.Arenas {
		arena, err := s.applyArena(ctx, stores, sa)
		if err != nil {
			return err
		}
		arenaByToken[arena.TokenAddress] = arena
	}

	for _, sa := range s.Agents {
		if err := s.applyAgent(ctx, stores, vault, sa, arenaByToken); err != nil {
			return err
		}
	}

	logger.Printf("[config] seeded %d arenas, %d agents", len(s.Arenas), len(s.Agents))
	return nil
}

// seedID derives a stable UUID from a seed key so re-applying the same file
// addresses the same rows.
func seedID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+key)).String()
}

func (s *Seed) applyArena(ctx context.Context, stores *storage.Stores, sa SeedArena) (*domain.Arena, error) {
	token := strings.ToLower(sa.TokenAddress)

	arena, err := stores.Arenas.GetByID(ctx, seedID("arena", token))
	if errors.Is(err, storage.ErrNotFound) && sa.OnChainID > 0 {
		// The indexer may have mirrored this arena first, under its own id.
		arena, err = stores.Arenas.GetByOnChainID(ctx, sa.OnChainID)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup arena %s: %w", token, err)
	}
	if arena == nil {
		arena = &domain.Arena{
			ID:        seedID("arena", token),
			CreatedAt: time.Now().UnixMilli(),
		}
	}
	arena.OnChainID = sa.OnChainID
	arena.TokenAddress = token
	arena.Name = sa.Name

	if err := stores.Arenas.Upsert(ctx, arena); err != nil {
		return nil, fmt.Errorf("seed arena %s: %w", token, err)
	}
	return arena, nil
}

func (s *Seed) applyAgent(ctx context.Context, stores *storage.Stores, vault *secrets.Vault, sa SeedAgent, arenaByToken map[string]*domain.Arena) error {
	now := time.Now().UnixMilli()

	agent, err := stores.Agents.GetByID(ctx, seedID("agent", sa.Name))
	if errors.Is(err, storage.ErrNotFound) && sa.OnChainID > 0 {
		agent, err = stores.Agents.GetByOnChainID(ctx, sa.OnChainID)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup agent %q: %w", sa.Name, err)
	}
	if agent == nil {
		agent = &domain.Agent{
			ID:        seedID("agent", sa.Name),
			CreatedAt: now,
		}
	}
	agent.OnChainID = sa.OnChainID
	agent.Name = sa.Name
	agent.WalletAddress = strings.ToLower(sa.WalletAddress)
	agent.FundedBalance = sa.FundedBalance
	agent.UpdatedAt = now

	if sa.Profile != nil {
		raw, err := json.Marshal(sa.Profile)
		if err != nil {
			return fmt.Errorf("agent %q: encode profile: %w", sa.Name, err)
		}
		agent.ProfileConfig = string(raw)
	}

	if sa.SignerKeyHex != "" {
		if vault == nil {
			return fmt.Errorf("agent %q: signer_key_hex requires a vault master key", sa.Name)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(sa.SignerKeyHex, "0x"))
		if err != nil {
			return fmt.Errorf("agent %q: decode signer key: %w", sa.Name, err)
		}
		ct, err := vault.Encrypt(raw)
		if err != nil {
			return fmt.Errorf("agent %q: encrypt signer key: %w", sa.Name, err)
		}
		agent.SignerCiphertext = ct
	}

	if err := stores.Agents.Upsert(ctx, agent); err != nil {
		return fmt.Errorf("seed agent %q: %w", sa.Name, err)
	}

	// Register and fund. Capital splits evenly across the agent's arenas.
	share := sa.FundedBalance
	if len(sa.Arenas) > 0 {
		share = sa.FundedBalance / float64(len(sa.Arenas))
	}
	for _, token := range sa.Arenas {
		arena := arenaByToken[strings.ToLower(token)]
		if err := stores.Registrations.Upsert(ctx, agent.ID, arena.ID, true); err != nil {
			return fmt.Errorf("seed registration %q/%s: %w", sa.Name, token, err)
		}
		if err := seedPortfolio(ctx, stores, agent.ID, arena.ID, share); err != nil {
			return fmt.Errorf("seed portfolio %q/%s: %w", sa.Name, token, err)
		}
	}
	return nil
}

// seedPortfolio creates the pair's portfolio, or tops up an existing one that
// has not opened a position. Opened portfolios are never touched.
func seedPortfolio(ctx context.Context, stores *storage.Stores, agentID, arenaID string, capital float64) error {
	pf, err := stores.Portfolios.Get(ctx, agentID, arenaID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		now := time.Now().UnixMilli()
		return stores.Portfolios.Create(ctx, &domain.Portfolio{
			ID:             uuid.NewString(),
			AgentID:        agentID,
			ArenaID:        arenaID,
			Cash:           capital,
			InitialCapital: capital,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if pf.Opened() || pf.InitialCapital == capital {
		return nil
	}
	pf.Cash = capital
	pf.InitialCapital = capital
	pf.UpdatedAt = time.Now().UnixMilli()
	return stores.Portfolios.Update(ctx, pf)
}
