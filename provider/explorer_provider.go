package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/config"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/httpclient"
)

const noRecordsMessage = "No records found"

// ExplorerLog is one entry of an explorer getLogs response.
type ExplorerLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TimeStamp       string   `json:"timeStamp"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
}

// Timestamp parses TimeStamp, which explorers return as hex or decimal seconds.
func (l ExplorerLog) Timestamp() (time.Time, error) {
	sec, err := parseQuantity(l.TimeStamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timeStamp %q: %w", l.TimeStamp, err)
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

// ToLog converts the entry to a go-ethereum log.
func (l ExplorerLog) ToLog() (types.Log, error) {
	data, err := hexutil.Decode(normalizeHex(l.Data))
	if err != nil {
		return types.Log{}, fmt.Errorf("invalid data: %w", err)
	}
	topics := make([]common.Hash, 0, len(l.Topics))
	for _, t := range l.Topics {
		if t == "" {
			continue
		}
		topics = append(topics, common.HexToHash(t))
	}
	block, err := parseQuantity(l.BlockNumber)
	if err != nil {
		return types.Log{}, fmt.Errorf("invalid blockNumber %q: %w", l.BlockNumber, err)
	}
	var index uint64
	if l.LogIndex != "" {
		if index, err = parseQuantity(l.LogIndex); err != nil {
			return types.Log{}, fmt.Errorf("invalid logIndex %q: %w", l.LogIndex, err)
		}
	}
	return types.Log{
		Address:     common.HexToAddress(l.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(l.TransactionHash),
		Index:       uint(index),
	}, nil
}

func normalizeHex(s string) string {
	if s == "" || s == "0x" {
		return "0x"
	}
	if !strings.HasPrefix(s, "0x") {
		return "0x" + s
	}
	return s
}

// parseQuantity accepts 0x-prefixed hex or decimal.
func parseQuantity(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// LogQuery selects SpinResult logs of one player.
type LogQuery struct {
	Topic0 common.Hash
	Player common.Address
	Page   int
	Offset int
}

// ExplorerProvider queries an Etherscan-compatible block explorer API.
type ExplorerProvider struct {
	client   *httpclient.Client
	apiKey   string
	contract common.Address
	logger   zerolog.Logger
}

// NewExplorerProvider creates a provider for the network's explorer.
func NewExplorerProvider(network config.NetworkConfig, logger zerolog.Logger) *ExplorerProvider {
	return &ExplorerProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL:    network.ExplorerAPIURL,
			Timeout:    15 * time.Second,
			Logger:     logger,
			MaxRetries: 2,
		}),
		apiKey:   network.ExplorerAPIKey,
		contract: network.ContractAddress,
		logger:   logger.With().Str("component", "explorer_provider").Logger(),
	}
}

// GetLogs returns one page of logs, newest first. An empty result set is not
// an error.
func (p *ExplorerProvider) GetLogs(ctx context.Context, q LogQuery) ([]ExplorerLog, error) {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", p.contract.Hex())
	params.Set("fromBlock", "0")
	params.Set("toBlock", "latest")
	params.Set("topic0", q.Topic0.Hex())
	params.Set("topic0_2_opr", "and")
	params.Set("topic2", common.BytesToHash(q.Player.Bytes()).Hex())
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("sort", "desc")
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}

	var resp explorerResponse
	if err := p.client.GetJSON(ctx, "", params, nil, &resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrExplorer, "explorer request failed")
	}

	if resp.Status == "0" && resp.Message == noRecordsMessage {
		return []ExplorerLog{}, nil
	}
	if resp.Status != "1" {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to fetch history"
		}
		var detail string
		_ = json.Unmarshal(resp.Result, &detail)
		return nil, apperrors.NewWithDebug(apperrors.ErrExplorer, msg, detail)
	}

	var logs []ExplorerLog
	if err := json.Unmarshal(resp.Result, &logs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrExplorer, "unexpected explorer result")
	}

	p.logger.Debug().
		Str("player", q.Player.Hex()).
		Int("page", q.Page).
		Int("count", len(logs)).
		Msg("Fetched explorer logs")

	return logs, nil
}
