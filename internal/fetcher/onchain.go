package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const erc4626ABIJSON = `[{"inputs":[{"internalType":"uint256","name":"shares","type":"uint256"}],"name":"convertToAssets","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc4626ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
	if err != nil {
		panic("failed to parse ERC-4626 ABI: " + err.Error())
	}
	erc4626ABI = parsed
}

// OnchainOptions parameterise the on-chain numeric feed.
type OnchainOptions struct {
	RPCURL   string
	Contract string
	// ItemName labels the tracked series in notifications.
	ItemName string
	// Field names the tracked numeric field, e.g. "rate".
	Field   string
	Timeout time.Duration
}

// Onchain samples an ERC-4626 vault's share rate over Ethereum RPC and
// exposes it as a numeric feed: the fetched body matches the price
// normalizer's wire shape, so an on-chain rate plugs into the same hysteresis
// pipeline as any other numeric source.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds an on-chain feed fetcher.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	if opts.Field == "" {
		opts.Field = "rate"
	}
	return &Onchain{opts: opts, logger: logger.With().Str("component", "onchain_fetcher").Logger()}
}

// Fetch samples the contract rate once and encodes it as a price payload.
func (o *Onchain) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if o.opts.RPCURL == "" {
		return nil, &FetchError{Source: src.Key, Err: errors.New("ethereum rpc url not configured")}
	}
	if o.opts.Contract == "" {
		return nil, &FetchError{Source: src.Key, Err: errors.New("contract address not configured")}
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return nil, &FetchError{Source: src.Key, Err: err}
	}

	addr := common.HexToAddress(o.opts.Contract)
	shares := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	payload, err := erc4626ABI.Pack("convertToAssets", shares)
	if err != nil {
		return nil, &FetchError{Source: src.Key, Err: err}
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, &FetchError{Source: src.Key, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}

	outputs, err := erc4626ABI.Unpack("convertToAssets", res)
	if err != nil {
		return nil, &FetchError{Source: src.Key, Err: err}
	}
	if len(outputs) != 1 {
		return nil, &FetchError{Source: src.Key, Err: errors.New("unexpected convertToAssets response")}
	}
	assets, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, &FetchError{Source: src.Key, Err: errors.New("failed to decode convertToAssets output")}
	}

	rate := decimal.NewFromBigInt(assets, -18)

	name := o.opts.ItemName
	if name == "" {
		name = o.opts.Contract
	}
	body, err := json.Marshal(map[string]any{
		"items": []map[string]any{{
			"id":     strings.ToLower(o.opts.Contract),
			"name":   name,
			"prices": map[string]string{o.opts.Field: rate.String()},
		}},
	})
	if err != nil {
		return nil, &FetchError{Source: src.Key, Err: err}
	}
	return body, nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}
	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ Fetcher = (*Onchain)(nil)
