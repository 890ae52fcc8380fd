package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()
	r.Use(app.instrument)

	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", app.metricsHandler).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	r.Handle("/metrics", obs.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", app.openapiHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", app.docsHandler).Methods(http.MethodGet)

	authR := r.PathPrefix("/api/auth").Subrouter()
	authR.Handle("/signup", app.limiter.Handler(http.HandlerFunc(app.signUpHandler))).Methods(http.MethodPost)
	authR.Handle("/signin", app.limiter.Handler(http.HandlerFunc(app.signInHandler))).Methods(http.MethodPost)
	authR.Handle("/signout", app.requireSession(http.HandlerFunc(app.signOutHandler))).Methods(http.MethodPost)
	authR.Handle("/me", app.requireSession(http.HandlerFunc(app.meHandler))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(app.requireSession)
	api.HandleFunc("/products", app.listProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", app.createProductHandler).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", app.updateProductHandler).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", app.deleteProductHandler).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}/restock", app.restockHandler).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}/sell", app.sellHandler).Methods(http.MethodPost)
	api.HandleFunc("/users", app.listUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users", app.createUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", app.updateUserHandler).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", app.deleteUserHandler).Methods(http.MethodDelete)
	api.HandleFunc("/dashboard", app.dashboardHandler).Methods(http.MethodGet)
	api.HandleFunc("/events", app.eventsHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	return WithRequestID(WithLogging(WithRecover(r)))
}
