package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/poslane/api/responses"
	"github.com/angelmondragon/poslane/pkg/config"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/logger"
)

const envHeader = "X-Poslane-Env"

// Pinger is any dependency with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the local store, the optional cache backend, and the
// cart service. Nil pingers are skipped so an in-memory cache does not fail
// readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				statuses[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				statuses[name] = "down"
				healthy = false
				logg.Warn(logg.WithField(ctx, "dependency", name), "readiness probe failed")
				continue
			}
			statuses[name] = "up"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(statuses))
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}
