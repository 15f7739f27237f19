package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stockwatch/internal/domain"
	"stockwatch/internal/util"
)

var _ Provider = (*AlpacaProvider)(nil)

// seriesLength is the number of daily bars returned, the "compact" history
// the detail view needs for its longest window.
const seriesLength = 100

// marketDataAPI is the subset of *marketdata.Client used here.
type marketDataAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetSnapshots(symbols []string, req marketdata.GetSnapshotRequest) (map[string]*marketdata.Snapshot, error)
}

// tradingAPI is the subset of *alpaca.Client used here.
type tradingAPI interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
	GetAssets(req alpaca.GetAssetsRequest) ([]alpaca.Asset, error)
}

// AlpacaOptions configures NewAlpacaProvider.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string // trading API
	DataURL   string // market-data API
	Feed      string

	// Universe is the symbol set scanned for movers.
	Universe    []string
	MoversCount int

	RateLimitPerMin int
	RateBurst       int
	MaxAttempts     int
	RetryDelay      time.Duration

	Log *slog.Logger
}

// AlpacaProvider serves quote data from the Alpaca market-data and trading
// APIs. Every upstream call is rate limited and retried.
type AlpacaProvider struct {
	data    marketDataAPI
	trading tradingAPI
	feed    string

	universe    []string
	moversCount int

	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	log         *slog.Logger

	assetsMu   sync.Mutex
	assets     []alpaca.Asset
	assetsTime time.Time
}

// assetsTTL bounds how long the searchable asset list is reused.
const assetsTTL = 24 * time.Hour

// NewAlpacaProvider creates an AlpacaProvider from credentials.
func NewAlpacaProvider(opts AlpacaOptions) *AlpacaProvider {
	mdOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		mdOpts.BaseURL = opts.DataURL
	}
	trOpts := alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		trOpts.BaseURL = opts.BaseURL
	}
	return newAlpacaProvider(marketdata.NewClient(mdOpts), alpaca.NewClient(trOpts), opts)
}

func newAlpacaProvider(data marketDataAPI, trading tradingAPI, opts AlpacaOptions) *AlpacaProvider {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MoversCount < 1 {
		opts.MoversCount = 5
	}
	universe := make([]string, 0, len(opts.Universe))
	for _, s := range opts.Universe {
		if s = domain.NormalizeSymbol(s); s != "" {
			universe = append(universe, s)
		}
	}
	return &AlpacaProvider{
		data:        data,
		trading:     trading,
		feed:        opts.Feed,
		universe:    universe,
		moversCount: opts.MoversCount,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin, opts.RateBurst),
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		now:         time.Now,
		log:         log.With("provider", "alpaca"),
	}
}

// call waits for a rate-limit token before every attempt of fn.
func (p *AlpacaProvider) call(ctx context.Context, fn func() error) error {
	return util.Retry(ctx, p.maxAttempts, p.retryDelay, 30*time.Second, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		return fn()
	})
}

// TopMovers ranks the configured universe by the change between the previous
// and the current daily bar.
func (p *AlpacaProvider) TopMovers(ctx context.Context) (domain.TopMovers, error) {
	var snaps map[string]*marketdata.Snapshot
	err := p.call(ctx, func() error {
		var err error
		snaps, err = p.data.GetSnapshots(p.universe, marketdata.GetSnapshotRequest{
			Feed: marketdata.Feed(p.feed),
		})
		return err
	})
	if err != nil {
		return domain.TopMovers{}, fmt.Errorf("GetSnapshots: %w", err)
	}

	movers := make([]domain.Mover, 0, len(snaps))
	for sym, snap := range snaps {
		if m, ok := moverFromSnapshot(sym, snap); ok {
			movers = append(movers, m)
		}
	}
	if len(movers) == 0 {
		return domain.TopMovers{}, ErrNoData
	}
	out := RankMovers(movers, p.moversCount)
	out.LastUpdated = p.now().UTC()
	return out, nil
}

func moverFromSnapshot(sym string, snap *marketdata.Snapshot) (domain.Mover, bool) {
	if snap == nil || snap.DailyBar == nil || snap.PrevDailyBar == nil || snap.PrevDailyBar.Close == 0 {
		return domain.Mover{}, false
	}
	price := snap.DailyBar.Close
	if snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		price = snap.LatestTrade.Price
	}
	cur := decimal.NewFromFloat(price)
	prev := decimal.NewFromFloat(snap.PrevDailyBar.Close)
	change := cur.Sub(prev)
	return domain.Mover{
		Symbol:        strings.ToUpper(sym),
		Price:         cur.Round(4),
		ChangeAmount:  change.Round(4),
		ChangePercent: change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4),
		Volume:        int64(snap.DailyBar.Volume),
	}, true
}

// RankMovers splits movers into the top n gainers, losers and most active.
func RankMovers(movers []domain.Mover, n int) domain.TopMovers {
	var gainers, losers []domain.Mover
	for _, m := range movers {
		switch m.ChangePercent.Sign() {
		case 1:
			gainers = append(gainers, m)
		case -1:
			losers = append(losers, m)
		}
	}
	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].ChangePercent.GreaterThan(gainers[j].ChangePercent) })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].ChangePercent.LessThan(losers[j].ChangePercent) })

	active := append([]domain.Mover(nil), movers...)
	sort.SliceStable(active, func(i, j int) bool { return active[i].Volume > active[j].Volume })

	return domain.TopMovers{
		Gainers:    head(gainers, n),
		Losers:     head(losers, n),
		MostActive: head(active, n),
	}
}

func head(ms []domain.Mover, n int) []domain.Mover {
	if len(ms) > n {
		ms = ms[:n]
	}
	if ms == nil {
		return []domain.Mover{}
	}
	return ms
}

// Overview describes symbol from its Alpaca asset record.
func (p *AlpacaProvider) Overview(ctx context.Context, symbol string) (domain.Overview, error) {
	symbol = domain.NormalizeSymbol(symbol)
	var asset *alpaca.Asset
	err := p.call(ctx, func() error {
		var err error
		asset, err = p.trading.GetAsset(symbol)
		return err
	})
	if err != nil {
		return domain.Overview{}, fmt.Errorf("GetAsset %s: %w", symbol, err)
	}
	if asset == nil {
		return domain.Overview{}, ErrNoData
	}
	return domain.Overview{
		Symbol:       asset.Symbol,
		Name:         asset.Name,
		Exchange:     string(asset.Exchange),
		AssetClass:   string(asset.Class),
		Status:       string(asset.Status),
		Tradable:     asset.Tradable,
		Shortable:    asset.Shortable,
		Marginable:   asset.Marginable,
		Fractionable: asset.Fractionable,
	}, nil
}

// DailySeries returns up to seriesLength daily bars, newest first.
func (p *AlpacaProvider) DailySeries(ctx context.Context, symbol string) ([]domain.DailyBar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	end := p.now().UTC()
	// 100 sessions fit in about 150 calendar days.
	start := end.AddDate(0, 0, -150)

	var raw []marketdata.Bar
	err := p.call(ctx, func() error {
		var err error
		raw, err = p.data.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      marketdata.Feed(p.feed),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}

	bars := make([]domain.DailyBar, 0, len(raw))
	for i := len(raw) - 1; i >= 0 && len(bars) < seriesLength; i-- {
		ab := raw[i]
		bars = append(bars, domain.DailyBar{
			Symbol: symbol,
			Date:   ab.Timestamp.UTC().Truncate(24 * time.Hour),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: int64(ab.Volume),
		})
	}
	return bars, nil
}

// SearchSymbol matches keywords against active US equities by symbol and
// name. The asset list is fetched once and reused for assetsTTL.
func (p *AlpacaProvider) SearchSymbol(ctx context.Context, keywords string) ([]domain.SymbolMatch, error) {
	assets, err := p.activeAssets(ctx)
	if err != nil {
		return nil, err
	}
	return MatchAssets(assets, keywords, 10), nil
}

func (p *AlpacaProvider) activeAssets(ctx context.Context) ([]alpaca.Asset, error) {
	p.assetsMu.Lock()
	defer p.assetsMu.Unlock()
	if p.assets != nil && p.now().Sub(p.assetsTime) < assetsTTL {
		return p.assets, nil
	}

	var assets []alpaca.Asset
	err := p.call(ctx, func() error {
		var err error
		assets, err = p.trading.GetAssets(alpaca.GetAssetsRequest{
			Status:     "active",
			AssetClass: "us_equity",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetAssets: %w", err)
	}
	p.assets = assets
	p.assetsTime = p.now()
	p.log.Debug("refreshed asset list", "assets", len(assets))
	return assets, nil
}

// MatchAssets scores assets against keywords: an exact symbol match scores
// 1, a symbol prefix 0.8, a name prefix 0.6 and a name substring 0.4. At most
// limit matches are returned, best first.
func MatchAssets(assets []alpaca.Asset, keywords string, limit int) []domain.SymbolMatch {
	q := strings.TrimSpace(keywords)
	if q == "" {
		return []domain.SymbolMatch{}
	}
	upper := strings.ToUpper(q)
	lower := strings.ToLower(q)

	matches := make([]domain.SymbolMatch, 0)
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		var score float64
		switch {
		case a.Symbol == upper:
			score = 1
		case strings.HasPrefix(a.Symbol, upper):
			score = 0.8
		case strings.HasPrefix(name, lower):
			score = 0.6
		case strings.Contains(name, lower):
			score = 0.4
		default:
			continue
		}
		matches = append(matches, domain.SymbolMatch{
			Symbol:     a.Symbol,
			Name:       a.Name,
			Exchange:   string(a.Exchange),
			AssetClass: string(a.Class),
			Score:      score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Symbol < matches[j].Symbol
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
