package main

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"bersona/internal/config"
	"bersona/internal/llm"
	"bersona/internal/structuring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	inv := llm.NewInvoker(log.Default())
	defer inv.Close()
	cache := structuring.NewCache(structuring.CacheConfigFromEnv())
	engine := structuring.NewEngine(cache, inv, log.Default())

	srv := newServer(engine, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/structure", srv.handleStructure)
	mux.HandleFunc("/v1/structure/batch", srv.handleStructureBatch)
	mux.HandleFunc("/v1/metrics", srv.handleMetrics)
	mux.HandleFunc("/v1/metrics/watch", srv.handleMetricsWatch)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Simple CORS middleware
	h := http.Handler(mux)
	h = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	}(h)

	log.Printf("Starting API server on %s (model=%s fallbacks=%v)", cfg.Port, cfg.Model, cfg.FallbackModels)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}
