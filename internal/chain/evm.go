package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"agent-arena/internal/observability"
)

// arenaCallABIJSON declares the contract functions the engine calls.
const arenaCallABIJSON = `[
	{"type":"function","name":"stakedBalance","stateMutability":"view","inputs":[
		{"name":"arenaId","type":"uint256"},{"name":"agentId","type":"uint256"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nextEpochId","stateMutability":"view","inputs":[
		{"name":"arenaId","type":"uint256"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"epochs","stateMutability":"view","inputs":[
		{"name":"arenaId","type":"uint256"},{"name":"epochId","type":"uint256"}],
		"outputs":[{"name":"startTime","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"ended","type":"bool"}]},
	{"type":"function","name":"executeTrade","stateMutability":"nonpayable","inputs":[
		{"name":"arenaId","type":"uint256"},{"name":"epochId","type":"uint256"},
		{"name":"action","type":"uint8"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[
		{"name":"arenaId","type":"uint256"}],"outputs":[]}
]`

// ClientOptions configures the EVM client.
type ClientOptions struct {
	RPCEndpoint     string
	WSEndpoint      string // empty disables event subscription
	ContractAddress string
	ChainID         int64
	RateLimit       rate.Limit // RPC calls per second; 0 means no limit
	Logger          *log.Logger
}

// Client implements Reader, Writer and Subscriber against an EVM arena contract.
type Client struct {
	rpc      *ethclient.Client
	ws       *ethclient.Client
	contract common.Address
	chainID  *big.Int
	callABI  abi.ABI
	decoder  *Decoder
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewClient dials the RPC (and optional WS) endpoints.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, opts.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}

	var ws *ethclient.Client
	if opts.WSEndpoint != "" {
		ws, err = ethclient.DialContext(ctx, opts.WSEndpoint)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("dial ws endpoint: %w", err)
		}
	}

	callABI, err := abi.JSON(strings.NewReader(arenaCallABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse call abi: %w", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}

	limit := opts.RateLimit
	if limit == 0 {
		limit = rate.Inf
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		rpc:      rpc,
		ws:       ws,
		contract: common.HexToAddress(opts.ContractAddress),
		chainID:  big.NewInt(opts.ChainID),
		callABI:  callABI,
		decoder:  decoder,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() {
	c.rpc.Close()
	if c.ws != nil {
		c.ws.Close()
	}
}

// NativeBalance returns the native-currency balance of an address in wei.
func (c *Client) NativeBalance(ctx context.Context, addr string) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	bal, err := c.rpc.BalanceAt(ctx, common.HexToAddress(addr), nil)
	observability.RecordChainCall("balanceAt", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr, err)
	}
	return bal, nil
}

// StakedBalance returns an agent's staked balance in an arena, in wei.
func (c *Client) StakedBalance(ctx context.Context, arenaOnChainID, agentOnChainID int64) (*big.Int, error) {
	out, err := c.call(ctx, "stakedBalance", big.NewInt(arenaOnChainID), big.NewInt(agentOnChainID))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// NextEpochID returns the arena's next-epoch-id counter.
func (c *Client) NextEpochID(ctx context.Context, arenaOnChainID int64) (int64, error) {
	out, err := c.call(ctx, "nextEpochId", big.NewInt(arenaOnChainID))
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Int64(), nil
}

// EpochInfo reads one epoch's (start, end, ended) tuple.
func (c *Client) EpochInfo(ctx context.Context, arenaOnChainID, epochID int64) (EpochInfo, error) {
	out, err := c.call(ctx, "epochs", big.NewInt(arenaOnChainID), big.NewInt(epochID))
	if err != nil {
		return EpochInfo{}, err
	}
	return EpochInfo{
		StartTime: out[0].(*big.Int).Int64(),
		EndTime:   out[1].(*big.Int).Int64(),
		Ended:     out[2].(bool),
	}, nil
}

// call packs and executes a read-only contract call.
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := c.callABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	start := time.Now()
	raw, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	observability.RecordChainCall(method, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := c.callABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// ExecuteTrade submits a trade authorization transaction.
func (c *Client) ExecuteTrade(ctx context.Context, signer SignerHandle, arenaOnChainID, epochID int64, action string, amount *big.Int) (string, error) {
	code := uint8(actionCodeBuy)
	if action == "SELL" {
		code = actionCodeSell
	}

	data, err := c.callABI.Pack("executeTrade", big.NewInt(arenaOnChainID), big.NewInt(epochID), code, amount)
	if err != nil {
		return "", fmt.Errorf("pack executeTrade: %w", err)
	}

	tx, err := c.sendTx(ctx, signer, data, nil)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// Deposit tops up an agent's staked balance in an arena.
func (c *Client) Deposit(ctx context.Context, signer SignerHandle, arenaOnChainID int64, amount *big.Int) error {
	data, err := c.callABI.Pack("deposit", big.NewInt(arenaOnChainID))
	if err != nil {
		return fmt.Errorf("pack deposit: %w", err)
	}

	_, err = c.sendTx(ctx, signer, data, amount)
	return err
}

// sendTx signs and submits one contract transaction.
func (c *Client) sendTx(ctx context.Context, signer SignerHandle, data []byte, value *big.Int) (*types.Transaction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		observability.RecordChainCall("sendTransaction", time.Since(start).Seconds())
	}()

	from := signer.Address()
	nonce, err := c.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	if value == nil {
		value = new(big.Int)
	}

	msg := ethereum.CallMsg{From: from, To: &c.contract, Value: value, Data: data}
	gasLimit, err := c.rpc.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, c.contract, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), signer.Key())
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return signed, nil
}

// SubscribeEvents streams decoded arena events over the WS connection.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan Event, error) {
	if c.ws == nil {
		return nil, fmt.Errorf("no ws endpoint configured")
	}

	logs := make(chan types.Log, 256)
	query := ethereum.FilterQuery{Addresses: []common.Address{c.contract}}
	sub, err := c.ws.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}

	events := make(chan Event, 256)
	go func() {
		defer close(events)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				c.logger.Printf("[chain] log subscription error: %v", err)
				return
			case lg := <-logs:
				ev, err := c.decoder.DecodeLog(lg, c.blockTime(ctx, lg.BlockNumber))
				if err != nil {
					if err != ErrUnknownEvent {
						c.logger.Printf("[chain] decode log %s: %v", lg.TxHash.Hex(), err)
					}
					continue
				}
				select {
				case events <- *ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// blockTime resolves a block's timestamp, best effort.
func (c *Client) blockTime(ctx context.Context, number uint64) int64 {
	header, err := c.ws.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0
	}
	return int64(header.Time)
}
