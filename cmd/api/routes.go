package main

import (
	"context"
	"net/http"
	"sort"
	"time"

	"adminconsole/internal/data"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	names := make([]string, 0, len(app.services))
	for name := range app.services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := app.services[name]
		base := "/v1/" + name

		router.HandlerFunc(http.MethodGet, base, app.listHandler(svc))
		router.HandlerFunc(http.MethodPost, base, app.createHandler(svc))
		router.HandlerFunc(http.MethodGet, base+"/:id", app.showHandler(svc))
		router.HandlerFunc(http.MethodPut, base+"/:id", app.updateHandler(svc))
		router.HandlerFunc(http.MethodDelete, base+"/:id", app.deleteHandler(svc))

		router.HandlerFunc(http.MethodPost, base+"/form", app.createFormHandler(svc))
		router.HandlerFunc(http.MethodGet, base+"/:id/form", app.showFormHandler(svc))
		router.HandlerFunc(http.MethodPut, base+"/:id/form", app.updateFormHandler(svc))
	}

	return app.correlationID(app.logRequest(app.rateLimit(app.rateLimiter)(app.recoverPanic(router))))
}

func (app *application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	app.logger.DebugWithContext(r.Context(), "health check requested")

	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	healthResponse := data.HealthCheckResponse{
		Status: "available",
		SystemInfo: data.SystemInfo{
			Environment: app.config.env,
			Version:     version,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
		Store: data.ProbeStore(ctx, app.repository),
	}

	statusCode := http.StatusOK
	if !healthResponse.Store.Healthy() {
		healthResponse.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
		app.logger.WarnWithContext(r.Context(), "store health check failed",
			"details", healthResponse.Store.Details,
			"response_time_ms", time.Since(start).Milliseconds())
	}

	err := app.writeJSON(w, statusCode, envelope{"data": healthResponse}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logger.DebugWithContext(r.Context(), "health check completed",
		"status", healthResponse.Status,
		"response_time_ms", time.Since(start).Milliseconds(),
		"store_status", healthResponse.Store.Status)
}
