package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultJupiterBase is the public Jupiter aggregator API.
const DefaultJupiterBase = "https://quote-api.jup.ag"

// JupiterClient talks to the Jupiter swap aggregator. Quotes are fetched
// over its REST API; swap transactions come back unsigned and are signed
// locally before submission.
type JupiterClient struct {
	base string
	http *http.Client
}

// NewJupiterClient creates a Jupiter API client. An empty base uses the
// public endpoint.
func NewJupiterClient(base string) *JupiterClient {
	if base == "" {
		base = DefaultJupiterBase
	}
	return &JupiterClient{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote is the aggregator's route for a proposed swap.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	OtherAmount    string          `json:"otherAmountThreshold"`
	SlippageBps    int             `json:"slippageBps"`
	RoutePlan      json.RawMessage `json:"routePlan"`
	PriceImpactPct string          `json:"priceImpactPct"`
}

// InAmountRaw returns the input amount in smallest units.
func (q *Quote) InAmountRaw() uint64 {
	n, _ := strconv.ParseUint(q.InAmount, 10, 64)
	return n
}

// OutAmountRaw returns the output amount in smallest units.
func (q *Quote) OutAmountRaw() uint64 {
	n, _ := strconv.ParseUint(q.OutAmount, 10, 64)
	return n
}

// GetQuote fetches a swap route. amount is in smallest units of the input
// mint (lamports when swapping from SOL).
func (j *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")
	u := j.base + "/v6/quote?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	resp, err := j.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter quote status %d", resp.StatusCode)
	}

	var out Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &out, nil
}

// BuildSwap asks Jupiter for a ready-to-sign transaction for the quote.
// Returns the raw transaction bytes.
func (j *JupiterClient) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string) ([]byte, error) {
	payload := map[string]interface{}{
		"userPublicKey":             userPublicKey,
		"wrapAndUnwrapSol":          true,
		"asLegacyTransaction":       false,
		"useTokenLedger":            false,
		"prioritizationFeeLamports": 0,
		"quoteResponse":             quote,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.base+"/v6/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter swap status %d", resp.StatusCode)
	}

	var sr struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	return raw, nil
}

// signTransaction fills in the fee payer signature on a serialized
// transaction. Wire layout: compact-u16 signature count, the signature
// slots, then the message. The wallet must be the fee payer (first slot).
func signTransaction(raw []byte, w *Wallet) ([]byte, error) {
	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signature count: %w", err)
	}
	if numSigs == 0 {
		return nil, fmt.Errorf("transaction has no signature slots")
	}

	sigBytes := numSigs * 64
	if len(raw) < offset+sigBytes {
		return nil, fmt.Errorf("transaction truncated: %d bytes for %d signatures", len(raw), numSigs)
	}

	message := raw[offset+sigBytes:]
	sig := w.Sign(message)

	signed := make([]byte, len(raw))
	copy(signed, raw)
	copy(signed[offset:offset+64], sig)
	return signed, nil
}

// decodeCompactU16 decodes Solana's compact-u16 length prefix. Returns the
// value and the number of bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	var value, shift int
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("unexpected end of data")
		}
		b := data[i]
		value |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}
