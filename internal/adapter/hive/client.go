package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/metrics"
)

const getTransactionMethod = "condenser_api.get_transaction"

// hived answers get_transaction for an unknown or malformed id with an assert exception
const assertExceptionCode = -32003

// DefaultNodes are the public API nodes tried in order
var DefaultNodes = []string{"https://api.hive.blog", "https://rpc.ecency.com"}

// Config configures the Hive JSON-RPC client
type Config struct {
	Nodes             []string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client resolves transactions through the condenser API, failing over across nodes
type Client struct {
	nodes      []string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Recorder
	requestID  atomic.Uint64
}

// NewClient creates a new Hive client
func NewClient(cfg Config, logger *zap.Logger, recorder *metrics.Recorder) (*Client, error) {
	nodes := make([]string, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node = strings.TrimRight(strings.TrimSpace(node), "/"); node != "" {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		return nil, errors.New("at least one hive node is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		nodes: nodes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		metrics: recorder,
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type transactionResult struct {
	TransactionID string            `json:"transaction_id"`
	Operations    []json.RawMessage `json:"operations"`
}

// Resolve fetches a transaction by id. The first node that gives a definitive answer wins.
func (c *Client) Resolve(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	var lastErr error

	for _, node := range c.nodes {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrResolverUnavailable, err)
		}

		record, err := c.getTransaction(ctx, node, transactionID)
		switch {
		case err == nil:
			c.metrics.ResolverRequest(node, "ok")
			return record, nil
		case errors.Is(err, domain.ErrTransactionNotFound):
			c.metrics.ResolverRequest(node, "not_found")
			return nil, err
		}

		c.metrics.ResolverRequest(node, "error")
		c.logger.Warn("hive node request failed",
			zap.String("node", node),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrResolverUnavailable, lastErr)
}

func (c *Client) getTransaction(ctx context.Context, node, transactionID string) (*domain.TransactionRecord, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  getTransactionMethod,
		Params:  []interface{}{transactionID},
		ID:      c.requestID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, node, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		if isUnknownTransaction(rpcResp.Error) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, rpcResp.Error.Message)
		}
		return nil, rpcResp.Error
	}

	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, domain.ErrTransactionNotFound
	}

	var result transactionResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	operations, err := decodeOperations(result.Operations)
	if err != nil {
		return nil, err
	}

	id := result.TransactionID
	if id == "" {
		id = transactionID
	}

	c.logger.Debug("transaction resolved",
		zap.String("node", node),
		zap.String("transaction_id", id),
		zap.Int("operations", len(operations)))

	return &domain.TransactionRecord{TransactionID: id, Operations: operations}, nil
}

func isUnknownTransaction(e *rpcError) bool {
	return e.Code == assertExceptionCode ||
		strings.Contains(strings.ToLower(e.Message), "unknown transaction")
}

// decodeOperations reads condenser operations, each a ["name", {body}] pair
func decodeOperations(raw []json.RawMessage) ([]domain.Operation, error) {
	operations := make([]domain.Operation, 0, len(raw))

	for i, item := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("operation %d is not a [name, body] pair", i)
		}

		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return nil, fmt.Errorf("operation %d has no name: %w", i, err)
		}

		op := domain.Operation{Type: domain.OperationType(name), Raw: pair[1]}
		if op.Type == domain.OperationTypeTransfer {
			var transfer domain.TransferOperation
			if err := json.Unmarshal(pair[1], &transfer); err != nil {
				return nil, fmt.Errorf("failed to decode transfer operation %d: %w", i, err)
			}
			op.Transfer = &transfer
		}

		operations = append(operations, op)
	}

	return operations, nil
}
