// Command mock-github serves pkg/ghmock on a local port so prstage can be run
// end to end without touching github.com:
//
//	prstage --api-url http://localhost:9090 --raw-url http://localhost:9090/raw fetch-pr 1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/prstage/pkg/ghmock"
	"github.com/tilsley/prstage/pkg/logging"
)

func main() {
	log := logging.New(os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := ghmock.NewStore()
	seedRepos(s)
	log.Info("seeded repos", "trees", s.Repos())

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           ghmock.NewRouter(s, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // exiting anyway
	}()

	log.Info("mock-github starting", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1) //nolint:gocritic // nothing left to flush
	}
}
