package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-orderflow/api/responses"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

// ReadinessCheck is a named dependency check used by HealthReady.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every check passes.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)
		for _, check := range checks {
			if check.Ping == nil {
				continue
			}
			if err := check.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
