// Package bootstrap wires configuration, logging and the detection
// components into a runnable application.
//
// Usage:
//
//	app, err := bootstrap.NewApp(cfg, config.ModeHeadless, sugar)
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    return err
//	}
//
//	// Wait for a shutdown signal or the configured run duration
//	app.WaitForShutdown()
package bootstrap
