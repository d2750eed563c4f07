package negotiation_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type RouterOpts struct {
	// SwaggerPath включает /swagger.json и /docs/*, пустой путь их отключает.
	SwaggerPath string
	ReadyChecks map[string]ReadyCheck
	// Stats is served on /stats when set.
	Stats func() any
}

func NewRouter(a *API, opts RouterOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range opts.ReadyChecks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "dependency": name, "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	if opts.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(opts.Stats())
		})
	}

	r.Post("/createCall", a.CreateCall)
	r.Post("/createBid", a.CreateBid)
	r.Post("/bargainPlaced", a.BargainPlaced)
	r.Post("/bidStatusChanged", a.BidStatusChanged)
	r.Post("/nodeExpired", a.NodeExpired)
	r.Post("/searchCallsInArea", a.SearchCallsInArea)
	r.Post("/computeGeoHash", a.ComputeGeoHash)

	if opts.SwaggerPath != "" {
		MountSwagger(r, opts.SwaggerPath)
	}

	return otelhttp.NewHandler(r, "negotiation-api")
}

// MountSwagger serves the OpenAPI file with no-cache and a cachebuster for the UI.
func MountSwagger(r chi.Router, swaggerPath string) {
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
}
