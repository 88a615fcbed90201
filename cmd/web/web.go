package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coopsweep/internal/config"
	"coopsweep/internal/game"
	"coopsweep/internal/handlers"
	"coopsweep/pkg/realtime"
)

//go:embed static/*
var embeddedStatic embed.FS

func newRouter(cfg *Config, store *game.Store) (http.Handler, error) {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.verbose {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return nil, err
	}
	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))

	handlers.NewHomeHandler(store, cfg.defaults()).RegisterRoutes(r)
	handlers.NewRoomHandler(store, cfg.baseURL, cfg.defaults(), cfg.requestTimeout).RegisterRoutes(r)
	handlers.NewHealthHandler(store).RegisterRoutes(r)
	return r, nil
}

func serve(ctx context.Context, cfg *Config) error {
	logf := config.Logf(&cfg.verbose)

	store := game.NewStore(game.Options{
		Delay:       cfg.debounce,
		Clock:       realtime.SystemClock{},
		CursorRate:  cfg.limit(),
		CursorBurst: cfg.cursorBurst,
		Logf:        logf,
	})
	defer store.Close()

	handler, err := newRouter(cfg, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store.StartReaper(ctx, cfg.sessionTimeout)

	// Streams and websockets stay open, so there is no write timeout.
	server := &http.Server{
		Addr:              cfg.addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on http://%s", cfg.addr())
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store.Close()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
