package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-snipe/internal/domain"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(asset_id|action|tx_signature|executed_at)
// Returns hex-encoded hash (64 characters).
func ComputeFillID(
	assetID string,
	action domain.Action,
	txSignature string,
	executedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		assetID,
		string(action),
		txSignature,
		executedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
