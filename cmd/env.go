package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/allergen-risk/internal/cache"
	"github.com/sells-group/allergen-risk/internal/crosscontact"
	"github.com/sells-group/allergen-risk/internal/ocr"
	"github.com/sells-group/allergen-risk/internal/resilience"
	"github.com/sells-group/allergen-risk/internal/risk"
	"github.com/sells-group/allergen-risk/internal/source"
	"github.com/sells-group/allergen-risk/internal/store"
	"github.com/sells-group/allergen-risk/pkg/openfoodfacts"
)

// appEnv holds the store, engine and optional cache shared by the
// assess/batch/serve commands.
type appEnv struct {
	Store  store.Store
	Engine *risk.Engine
	Cross  *crosscontact.Model
	Cache  *cache.Redis // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode, opens and migrates the store, and
// builds the engine. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	cross, err := crosscontact.New(cfg.CrossContact)
	if err != nil {
		return nil, err
	}
	engine, err := risk.New(cfg.Risk, cross)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{Store: st, Engine: engine, Cross: cross}

	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.TTLHours)*time.Hour)
		if err != nil {
			zap.L().Warn("redis unavailable, product cache disabled", zap.Error(err))
		} else {
			env.Cache = rc
			zap.L().Info("product cache enabled")
		}
	} else {
		zap.L().Debug("ALLERGEN_REDIS_URL not set, product cache disabled")
	}

	return env, nil
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// barcodeSource builds the lookup chain for barcodes: OpenFoodFacts (cached
// when Redis is configured) or the local database, then ingredient inference
// when enabled, with facility profiles from the store attached.
func (e *appEnv) barcodeSource(kind string) (source.ProductSource, error) {
	var src source.ProductSource
	switch kind {
	case "off", "":
		client := openfoodfacts.NewClient(
			openfoodfacts.WithBaseURL(cfg.OpenFoodFacts.BaseURL),
			openfoodfacts.WithUserAgent(cfg.OpenFoodFacts.UserAgent),
			openfoodfacts.WithRateLimit(cfg.OpenFoodFacts.RatePerSec, cfg.OpenFoodFacts.Burst),
			openfoodfacts.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.OpenFoodFacts.TimeoutSecs) * time.Second,
			}),
		)
		src = source.NewOpenFoodFacts(client, cfg.OpenFoodFacts, resilience.NewPolicy("openfoodfacts", cfg.Retry))
		if e.Cache != nil {
			src = source.NewCached(src, e.Cache)
		}
	case "db":
		src = source.NewDatabase(e.Store)
	default:
		return nil, eris.Errorf("unknown source %q (want off or db)", kind)
	}
	if cfg.Ingredients.Enabled {
		src = source.NewIngredients(src, cfg.Ingredients.Confidence)
	}
	return source.NewWithFacilities(src, e.Store), nil
}

// labelSource builds the OCR lookup for label photos.
func labelSource() (source.ProductSource, error) {
	ext, err := ocr.NewExtractor(cfg.OCR, cfg.Anthropic)
	if err != nil {
		return nil, err
	}
	return source.NewLabel(ext, cfg.OCR.ContainsConfidence), nil
}
