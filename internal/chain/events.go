package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// arenaABIJSON declares the six arena contract events the indexer mirrors.
const arenaABIJSON = `[
	{"type":"event","name":"AgentCreated","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"wallet","type":"address","indexed":true},
		{"name":"name","type":"string","indexed":false}]},
	{"type":"event","name":"ArenaCreated","inputs":[
		{"name":"arenaId","type":"uint256","indexed":true},
		{"name":"token","type":"address","indexed":true},
		{"name":"name","type":"string","indexed":false}]},
	{"type":"event","name":"AgentRegistered","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"arenaId","type":"uint256","indexed":true}]},
	{"type":"event","name":"AgentUnregistered","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"arenaId","type":"uint256","indexed":true}]},
	{"type":"event","name":"AgentEpochRenewed","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"arenaId","type":"uint256","indexed":true},
		{"name":"epochId","type":"uint256","indexed":false}]},
	{"type":"event","name":"TradePlaced","inputs":[
		{"name":"agentId","type":"uint256","indexed":true},
		{"name":"arenaId","type":"uint256","indexed":true},
		{"name":"action","type":"uint8","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]}
]`

// Trade action codes used by the contract.
const (
	actionCodeBuy  = 0
	actionCodeSell = 1
)

// ErrUnknownEvent is returned for logs whose topic is not an arena event.
var ErrUnknownEvent = fmt.Errorf("unknown event topic")

// Decoder maps raw contract logs to Events.
type Decoder struct {
	abi    abi.ABI
	byID   map[common.Hash]string
}

// NewDecoder parses the arena contract ABI.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(arenaABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse arena abi: %w", err)
	}

	byID := make(map[common.Hash]string, len(parsed.Events))
	for name, ev := range parsed.Events {
		byID[ev.ID] = name
	}
	return &Decoder{abi: parsed, byID: byID}, nil
}

// DecodeLog decodes one contract log. Returns ErrUnknownEvent for logs
// emitted by other events of the same contract.
func (d *Decoder) DecodeLog(lg types.Log, blockTime int64) (*Event, error) {
	if len(lg.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	name, ok := d.byID[lg.Topics[0]]
	if !ok {
		return nil, ErrUnknownEvent
	}

	ev := &Event{
		Kind:        EventKind(name),
		BlockNumber: int64(lg.BlockNumber),
		BlockTime:   blockTime,
		TxHash:      lg.TxHash.Hex(),
	}

	unpacked := make(map[string]interface{})
	if len(lg.Data) > 0 {
		if err := d.abi.UnpackIntoMap(unpacked, name, lg.Data); err != nil {
			return nil, fmt.Errorf("unpack %s data: %w", name, err)
		}
	}

	switch ev.Kind {
	case EventAgentCreated:
		ev.AgentOnChainID = topicInt64(lg, 1)
		ev.Wallet = strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
		ev.Name, _ = unpacked["name"].(string)

	case EventArenaCreated:
		ev.ArenaOnChainID = topicInt64(lg, 1)
		ev.TokenAddress = strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
		ev.Name, _ = unpacked["name"].(string)

	case EventAgentRegistered, EventAgentUnregistered:
		ev.AgentOnChainID = topicInt64(lg, 1)
		ev.ArenaOnChainID = topicInt64(lg, 2)

	case EventAgentEpochRenewed:
		ev.AgentOnChainID = topicInt64(lg, 1)
		ev.ArenaOnChainID = topicInt64(lg, 2)
		if v, ok := unpacked["epochId"].(*big.Int); ok {
			ev.EpochID = v.Int64()
		}

	case EventTradePlaced:
		ev.AgentOnChainID = topicInt64(lg, 1)
		ev.ArenaOnChainID = topicInt64(lg, 2)
		if v, ok := unpacked["action"].(uint8); ok && v == actionCodeSell {
			ev.Action = "SELL"
		} else {
			ev.Action = "BUY"
		}
		if v, ok := unpacked["amount"].(*big.Int); ok {
			ev.Amount = v
		}
	}

	return ev, nil
}

// topicInt64 extracts an indexed uint256 topic as int64.
func topicInt64(lg types.Log, i int) int64 {
	if i >= len(lg.Topics) {
		return 0
	}
	return new(big.Int).SetBytes(lg.Topics[i].Bytes()).Int64()
}
