// Package ledger executes buy and sell orders against the Solana chain
// through the Jupiter aggregator. A paper implementation is provided for
// dry runs.
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"
)

const (
	// WSOLMint is the wrapped SOL mint, the input side of every buy.
	WSOLMint = "So11111111111111111111111111111111111111112"

	lamportsPerSOL = 1_000_000_000
)

// Receipt describes a completed execution.
type Receipt struct {
	// Signature is the transaction signature on chain. Paper trades carry
	// a synthetic signature.
	Signature string
	// Slot the transaction was confirmed in, zero for paper trades.
	Slot int64
	// InAmount and OutAmount are the swapped amounts in smallest units.
	InAmount  uint64
	OutAmount uint64
	// FillPrice is the per-token USD price when the venue can provide
	// one, zero otherwise.
	FillPrice float64
}

// Client executes trades. Size is denominated in SOL for buys; sells always
// liquidate the full holding for the asset.
type Client interface {
	Buy(ctx context.Context, assetID string, size float64) (*Receipt, error)
	Sell(ctx context.Context, assetID string, size float64) (*Receipt, error)
}

// ExecOptions configures ExecClient.
type ExecOptions struct {
	RPC     *RPCClient
	Jupiter *JupiterClient
	Wallet  *Wallet
	// Confirm is optional; when nil confirmations are polled over RPC.
	Confirm *ConfirmClient
	// SlippageBps bounds acceptable price movement during the swap.
	SlippageBps int
	// ConfirmTimeout bounds how long a trade waits for confirmation.
	ConfirmTimeout time.Duration
	Logger         *log.Logger
}

// ExecClient executes trades through Jupiter: quote, build, sign locally,
// submit over RPC, then wait for confirmed commitment.
type ExecClient struct {
	rpc            *RPCClient
	jupiter        *JupiterClient
	wallet         *Wallet
	confirm        *ConfirmClient
	slippageBps    int
	confirmTimeout time.Duration
	logger         *log.Logger
}

// NewExecClient creates a live execution client.
func NewExecClient(opts ExecOptions) (*ExecClient, error) {
	if opts.RPC == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if opts.Jupiter == nil {
		return nil, fmt.Errorf("jupiter client is required")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("wallet is required")
	}

	slippage := opts.SlippageBps
	if slippage <= 0 {
		slippage = 100
	}
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &ExecClient{
		rpc:            opts.RPC,
		jupiter:        opts.Jupiter,
		wallet:         opts.Wallet,
		confirm:        opts.Confirm,
		slippageBps:    slippage,
		confirmTimeout: timeout,
		logger:         logger,
	}, nil
}

// Compile-time interface check.
var _ Client = (*ExecClient)(nil)

// Buy swaps size SOL into the asset.
func (c *ExecClient) Buy(ctx context.Context, assetID string, size float64) (*Receipt, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buy size must be positive, got %f", size)
	}

	lamports := uint64(size * lamportsPerSOL)
	quote, err := c.jupiter.GetQuote(ctx, WSOLMint, assetID, lamports, c.slippageBps)
	if err != nil {
		return nil, fmt.Errorf("quote buy %s: %w", assetID, err)
	}

	return c.execute(ctx, assetID, quote)
}

// Sell liquidates the wallet's full holding of the asset back into SOL.
// The requested size is informational; the on-chain token balance is the
// source of truth for how much can actually be sold.
func (c *ExecClient) Sell(ctx context.Context, assetID string, size float64) (*Receipt, error) {
	balance, err := c.rpc.GetTokenBalance(ctx, c.wallet.Address(), assetID)
	if err != nil {
		return nil, fmt.Errorf("token balance %s: %w", assetID, err)
	}
	if balance == 0 {
		return nil, fmt.Errorf("no token balance for %s", assetID)
	}

	quote, err := c.jupiter.GetQuote(ctx, assetID, WSOLMint, balance, c.slippageBps)
	if err != nil {
		return nil, fmt.Errorf("quote sell %s: %w", assetID, err)
	}

	return c.execute(ctx, assetID, quote)
}

// execute builds, signs, submits and confirms a swap for the quote.
func (c *ExecClient) execute(ctx context.Context, assetID string, quote *Quote) (*Receipt, error) {
	raw, err := c.jupiter.BuildSwap(ctx, quote, c.wallet.Address())
	if err != nil {
		return nil, fmt.Errorf("build swap %s: %w", assetID, err)
	}

	signed, err := signTransaction(raw, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("sign swap %s: %w", assetID, err)
	}

	signature, err := c.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed))
	if err != nil {
		return nil, fmt.Errorf("send swap %s: %w", assetID, err)
	}

	c.logger.Printf("submitted swap %s -> %s sig=%s", quote.InputMint, quote.OutputMint, signature)

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	var slot int64
	if c.confirm != nil {
		slot, err = c.confirm.WaitConfirmed(confirmCtx, signature)
		if err != nil && confirmCtx.Err() == nil {
			// A dropped socket is not a transaction failure; poll for the
			// rest of the confirmation window.
			c.logger.Printf("confirm stream for %s failed (%v), polling instead", signature, err)
			slot, err = c.pollConfirmed(confirmCtx, signature)
		}
	} else {
		slot, err = c.pollConfirmed(confirmCtx, signature)
	}
	if err != nil {
		return nil, fmt.Errorf("confirm swap %s sig=%s: %w", assetID, signature, err)
	}

	return &Receipt{
		Signature: signature,
		Slot:      slot,
		InAmount:  quote.InAmountRaw(),
		OutAmount: quote.OutAmountRaw(),
	}, nil
}

// pollConfirmed polls getSignatureStatuses until the signature confirms.
func (c *ExecClient) pollConfirmed(ctx context.Context, signature string) (int64, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return 0, fmt.Errorf("transaction failed on chain: %v", st.Err)
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return st.Slot, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
