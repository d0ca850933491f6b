package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lcviewer/internal/api"
	"github.com/banshee-data/lcviewer/internal/dashboard"
	"github.com/banshee-data/lcviewer/internal/timeutil"
)

const (
	// expiryInterval is how often idle dashboards are looked for.
	expiryInterval = time.Minute
	// buildTimeout bounds loading and rendering a new dashboard.
	buildTimeout   = 2 * time.Minute
)

type serveOptions struct {
	commonOptions
	Listen string
	// NoDebug leaves /debug/ unmounted.
	NoDebug bool
}

func parseServeFlags(args []string) (*serveOptions, error) {
	opts := &serveOptions{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	opts.register(fs)
	fs.StringVar(&opts.Listen, "listen", ":8080", "Listen address")
	fs.BoolVar(&opts.NoDebug, "no-debug", false, "Do not mount the /debug/ console")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Listen == "" {
		return nil, errors.New("listen address is required")
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func serve(opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.commonOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := dashboard.NewRegistry(a.dashboard)
	registry.BuildTimeout = buildTimeout
	mux := api.NewServer(registry, a.store).ServeMux()
	if !opts.NoDebug {
		if err := a.database.AttachAdminRoutes(mux, opts.DBPath); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	if idle := a.cfg.GetIdleTimeout(); idle > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.RunExpiry(ctx, timeutil.RealClock{}, expiryInterval, idle)
		}()
	}

	server := &http.Server{
		Addr:    opts.Listen,
		Handler: api.LoggingMiddleware(mux),
	}
	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()
	log.Printf("listening on %s", opts.Listen)
	if a.devObject != 0 {
		log.Printf("dev dashboard: http://localhost%s/objects/%d", opts.Listen, a.devObject)
	}

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	wg.Wait()
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	default:
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
