package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/loganko83/aitrading-sub000/internal/domain"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// MaxPageLimit is the largest page the klines endpoint serves.
	MaxPageLimit = 1500
)

// Client implements ports.BarSource on top of the Binance USDⓈ-M futures
// klines endpoint.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	pageLimit     int
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	PageLimit  int    // Klines per request, defaults to MaxPageLimit
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for Binance client", ports.ErrConfigurationError)
	}
	if cfg.PageLimit < 0 || cfg.PageLimit > MaxPageLimit {
		return nil, fmt.Errorf("%w: page limit must be within [1, %d], got %d", ports.ErrConfigurationError, MaxPageLimit, cfg.PageLimit)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Klines are public; keys only matter for rate-limit weight.
		cfg.Logger.Debug(context.Background(), "APIKey or SecretKey is empty, using public endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	pageLimit := cfg.PageLimit
	if pageLimit == 0 {
		pageLimit = MaxPageLimit
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		pageLimit:     pageLimit,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1001: // Internal error; unable to process your request
			mappedErr = ports.ErrExchangeUnavailable
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1007, -1021: // Backend timeout / timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature, key format or permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrNotFound
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetKlines retrieves the most recent klines for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	op := "GetKlines"
	if limit <= 0 || limit > MaxPageLimit {
		limit = c.pageLimit
	}
	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, bk := range klines {
		bar, err := translateBinanceKline(bk)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// GetKlinesRange fetches all klines for a symbol/interval between start and end time,
// paging forward from start.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	op := "GetKlinesRange"
	var bars []domain.Bar
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(c.pageLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			bar, err := translateBinanceKline(bk)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			// Overlapping pages must not produce duplicate bars.
			if n := len(bars); n > 0 && !bar.Time.After(bars[n-1].Time) {
				continue
			}
			bars = append(bars, bar)
		}
		c.logger.Debug(ctx, op+" page fetched", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(klines), "total": len(bars)})

		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < c.pageLimit {
			break
		}
	}

	return bars, nil
}

// LoadBars implements ports.BarSource. A zero end means now; a zero start
// fetches only the most recent page.
func (c *Client) LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("%w: symbol and interval are required", ports.ErrInvalidRequest)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		bars, err := c.GetKlines(ctx, symbol, interval, c.pageLimit)
		if err != nil {
			return nil, err
		}
		return trimAfter(bars, end), nil
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ports.ErrInvalidRequest, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	bars, err := c.GetKlinesRange(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "Loaded bars from Binance", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(bars)})
	return bars, nil
}

func trimAfter(bars []domain.Bar, end time.Time) []domain.Bar {
	for i, b := range bars {
		if b.Time.After(end) {
			return bars[:i]
		}
	}
	return bars
}

// --- Translation Helpers ---

func translateBinanceKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	values := [5]float64{}
	for i, f := range [5]struct{ name, raw string }{
		{"open price", bk.Open},
		{"high price", bk.High},
		{"low price", bk.Low},
		{"close price", bk.Close},
		{"volume", bk.Volume},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing %s '%s': %w", f.name, f.raw, err)
		}
		values[i] = d.InexactFloat64()
	}

	return domain.Bar{
		Time:   time.UnixMilli(bk.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
