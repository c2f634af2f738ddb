package bootstrap

import (
	"fmt"
	"sync"

	"argus/config"
	"argus/core"
	"argus/correlate"
	"argus/search"
	"argus/service"
	"argus/source"

	"go.uber.org/zap"
)

// App holds the wired argus components. The entity source is opened on
// first use so commands that only validate never touch the data directory.
type App struct {
	Config    *config.Config
	Sugar     *zap.SugaredLogger
	Mapper    *core.FieldMapper
	Validator *search.Validator
	GeoCache  *correlate.GeoCache
	Engine    *correlate.Engine

	queries *service.QueryService

	sourceOnce   sync.Once
	source       service.EntitySource
	sourceErr    error
	correlations *service.CorrelationService
}

// NewApp wires the components described by cfg
func NewApp(cfg *config.Config, sugar *zap.SugaredLogger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	mapper := core.DefaultFieldMapper()
	if cfg.Fields.MappingFile != "" {
		m, err := core.LoadFieldMapper(cfg.Fields.MappingFile)
		if err != nil {
			return nil, fmt.Errorf("%s", ClassifyMappingError(err, cfg.Fields.MappingFile))
		}
		mapper = m
		sugar.Infow("Loaded field mapping override", "path", cfg.Fields.MappingFile)
	}

	geo, err := correlate.NewGeoCache(cfg.Geo.CacheSize)
	if err != nil {
		return nil, err
	}

	sanitizer := search.NewSanitizer(cfg.Query.MaxLength, cfg.Query.PatternTimeout)
	validator := search.NewValidator(mapper, sanitizer)

	engine := correlate.NewEngine(mapper,
		correlate.WithLogger(sugar.Named("correlate")),
		correlate.WithGeoCache(geo),
		correlate.WithCheckEvery(cfg.Correlation.CheckEvery),
		correlate.WithDefaultWeight(cfg.Correlation.DefaultWeight),
		correlate.WithMaxLimit(cfg.Correlation.MaxLimit),
	)

	return &App{
		Config:    cfg,
		Sugar:     sugar,
		Mapper:    mapper,
		Validator: validator,
		GeoCache:  geo,
		Engine:    engine,
	}, nil
}

// WithSource replaces the file-backed entity source, mainly for tests and
// embedding
func (a *App) WithSource(src service.EntitySource) *App {
	a.sourceOnce.Do(func() {})
	a.source, a.sourceErr = src, nil
	a.queries = service.NewQueryService(a.Validator, src, a.Sugar.Named("query"))
	a.correlations = nil
	return a
}

// Source opens the entity source on first use
func (a *App) Source() (service.EntitySource, error) {
	a.sourceOnce.Do(func() {
		fs, err := source.NewFileSource(a.Config.Source.DataDir, a.Sugar.Named("source"))
		if err != nil {
			a.sourceErr = fmt.Errorf("%s", ClassifySourceError(err, a.Config.Source.DataDir))
			return
		}
		a.source = fs
		a.queries = service.NewQueryService(a.Validator, fs, a.Sugar.Named("query"))
	})
	return a.source, a.sourceErr
}

// Queries returns the query service backed by the entity source
func (a *App) Queries() (*service.QueryService, error) {
	if _, err := a.Source(); err != nil {
		return nil, err
	}
	return a.queries, nil
}

// Validation returns a query service usable for validation only
func (a *App) Validation() *service.QueryService {
	return service.NewQueryService(a.Validator, nil, a.Sugar.Named("query"))
}

// Correlations returns the correlation service
func (a *App) Correlations() (*service.CorrelationService, error) {
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	if a.correlations == nil {
		a.correlations = service.NewCorrelationService(a.queries, src, a.Engine, a.Sugar.Named("correlate"),
			service.WithBudget(a.Config.Correlation.Timeout),
			service.WithBatchWorkers(a.Config.Batch.Workers),
		)
	}
	return a.correlations, nil
}
