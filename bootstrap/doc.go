// Package bootstrap builds the argus object graph from configuration.
// It keeps main.go and the CLI commands free of wiring code.
//
// Usage:
//
//	logger, sugar, err := bootstrap.InitLogger("info")
//	cfg, err := bootstrap.InitConfig(configFile, sugar)
//	app, err := bootstrap.NewApp(cfg, sugar)
//	resp, err := app.Correlations().Correlate(ctx, req)
package bootstrap
