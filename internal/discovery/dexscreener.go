package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-snipe/internal/domain"
)

// DefaultDexScreenerURL is the public pair search endpoint.
const DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/search"

// DexScreenerSource fetches candidate pairs from the DexScreener search API
// and normalizes them into domain candidates.
type DexScreenerSource struct {
	url    string
	query  string
	client *http.Client
	now    func() time.Time
}

// NewDexScreenerSource creates a source polling the given search endpoint.
// An empty endpoint uses the public API; an empty query searches "solana".
func NewDexScreenerSource(endpoint, query string, timeout time.Duration) *DexScreenerSource {
	if endpoint == "" {
		endpoint = DefaultDexScreenerURL
	}
	if query == "" {
		query = "solana"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DexScreenerSource{
		url:    strings.TrimSuffix(endpoint, "/"),
		query:  query,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Compile-time interface check.
var _ MarketDataSource = (*DexScreenerSource)(nil)

// Name identifies the source in logs and metrics.
func (s *DexScreenerSource) Name() string {
	return "dexscreener"
}

// Fetch retrieves the current pair listing. A malformed pair is skipped,
// never fatal for the whole batch.
func (s *DexScreenerSource) Fetch(ctx context.Context) ([]*domain.Candidate, error) {
	u := s.url + "?q=" + url.QueryEscape(s.query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	now := s.now().UTC()
	candidates := make([]*domain.Candidate, 0, len(payload.Pairs))
	for i := range payload.Pairs {
		candidates = append(candidates, normalizePair(&payload.Pairs[i], now))
	}
	return candidates, nil
}

// pairsResponse covers both response shapes the API serves: an object with
// a "pairs" array and, for some routes, a bare array.
type pairsResponse struct {
	Pairs []pair `json:"pairs"`
}

func (r *pairsResponse) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &r.Pairs)
	}

	type alias pairsResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.Pairs = a.Pairs
	return nil
}

type pair struct {
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap   float64 `json:"marketCap"`
	FDV         float64 `json:"fdv"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		Buy  float64 `json:"buy"`
		Sell float64 `json:"sell"`
		H24  float64 `json:"h24"`
	} `json:"volume"`
	// PairCreatedAt is unix milliseconds; CreatedAt is the older
	// RFC3339-style field some routes still serve.
	PairCreatedAt int64  `json:"pairCreatedAt"`
	CreatedAt     string `json:"createdAt"`
}

// normalizePair maps a feed pair onto a Candidate. Missing numeric fields
// become zero; an unparseable creation time yields age 0 so the age filter
// rejects rather than a stale default passing.
func normalizePair(p *pair, now time.Time) *domain.Candidate {
	assetID := p.BaseToken.Address
	if assetID == "" {
		assetID = p.PairAddress
	}

	price, _ := strconv.ParseFloat(p.PriceUSD, 64)

	marketCap := p.MarketCap
	if marketCap == 0 {
		marketCap = p.FDV
	}

	return &domain.Candidate{
		AssetID:        assetID,
		PriceUSD:       price,
		LiquidityUSD:   p.Liquidity.USD,
		MarketCapUSD:   marketCap,
		PriceChangePct: p.PriceChange.H24,
		AgeHours:       ageHours(p, now),
		BuyVolume:      p.Volume.Buy,
		SellVolume:     p.Volume.Sell,
		DiscoveredAt:   now.UnixMilli(),
	}
}

func ageHours(p *pair, now time.Time) float64 {
	var created time.Time
	switch {
	case p.PairCreatedAt > 0:
		created = time.UnixMilli(p.PairCreatedAt).UTC()
	case p.CreatedAt != "":
		t, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
		if err != nil {
			return 0
		}
		created = t.UTC()
	default:
		return 0
	}

	age := now.Sub(created).Hours()
	if age < 0 {
		return 0
	}
	return age
}
