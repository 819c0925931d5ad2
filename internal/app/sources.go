package app

import (
	"fmt"

	"github.com/loganko83/aitrading-sub000/config"
	"github.com/loganko83/aitrading-sub000/internal/adapters/barstore"
	"github.com/loganko83/aitrading-sub000/internal/adapters/binanceclient"
	"github.com/loganko83/aitrading-sub000/internal/adapters/synthetic"
	"github.com/loganko83/aitrading-sub000/internal/ports"
)

// NewBarSource builds the bar source selected by cfg.BarSource.
func NewBarSource(cfg *config.Config, logger ports.Logger) (ports.BarSource, error) {
	switch cfg.BarSource {
	case config.SourceBinance:
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     logger,
		})
	case config.SourceCSV:
		if cfg.BarsFile != "" {
			return barstore.NewCSVFile(cfg.BarsFile), nil
		}
		return barstore.NewCSVStore(cfg.DataDir), nil
	case config.SourceParquet:
		if cfg.BarsFile != "" {
			return barstore.NewParquetFile(cfg.BarsFile), nil
		}
		return barstore.NewParquetStore(cfg.DataDir), nil
	case config.SourceSynthetic:
		sc := synthetic.DefaultConfig()
		sc.Seed = cfg.SyntheticSeed
		if !cfg.Start.IsZero() {
			sc.Start = cfg.Start
		}
		return synthetic.New(sc)
	default:
		return nil, fmt.Errorf("%w: unknown bar source %q", ports.ErrConfigurationError, cfg.BarSource)
	}
}
