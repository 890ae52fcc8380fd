package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/catalog"
	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/dashboard"
	"github.com/fairyhunter13/cafe-inventory/internal/directory"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/queue"
)

// Deps are the services the API is built on.
type Deps struct {
	Auth      *auth.Service
	Catalog   *catalog.Service
	Directory *directory.Service
	Manager   *queue.Manager
	Journal   *queue.Journal
	Tracer    obs.Tracer
	// Pinger reports store health; optional.
	Pinger func(context.Context) error
}

type App struct {
	Cfg       config.Config
	Auth      *auth.Service
	Catalog   *catalog.Service
	Directory *directory.Service
	Manager   *queue.Manager
	Journal   *queue.Journal

	tracer  obs.Tracer
	pinger  func(context.Context) error
	limiter *rateLimiter
	closing atomic.Bool
	started time.Time
}

type productResponse struct {
	Product  *model.Product  `json:"product,omitempty"`
	Products []model.Product `json:"products"`
	Message  string          `json:"message,omitempty"`
}

type userResponse struct {
	User    *model.User  `json:"user,omitempty"`
	Users   []model.User `json:"users"`
	Message string       `json:"message,omitempty"`
}

func NewApp(cfg config.Config, d Deps) *App {
	tracer := d.Tracer
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	return &App{
		Cfg:       cfg,
		Auth:      d.Auth,
		Catalog:   d.Catalog,
		Directory: d.Directory,
		Manager:   d.Manager,
		Journal:   d.Journal,
		tracer:    tracer,
		pinger:    d.Pinger,
		limiter:   newRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
		started:   time.Now(),
	}
}

// StartShutdown marks the app as draining and stops event intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	if a.Manager != nil {
		a.Manager.CloseIntake()
	}
}

// decodeJSON reads a JSON body into v, writing the error response itself
// when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// --- products ---------------------------------------------------------------

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{Products: products})
}

func (a *App) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var form model.ProductForm
	if !decodeJSON(w, r, &form) {
		return
	}
	p, err := a.Catalog.CreateProduct(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productResponse{Product: &p, Products: a.Catalog.Products(), Message: "Product created."})
}

func (a *App) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	var form model.ProductForm
	if !decodeJSON(w, r, &form) {
		return
	}
	p, err := a.Catalog.UpdateProduct(r.Context(), mux.Vars(r)["id"], form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{Product: &p, Products: a.Catalog.Products(), Message: "Product updated."})
}

func (a *App) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, r, model.ErrConfirmationRequired)
		return
	}
	if err := a.Catalog.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse{Products: a.Catalog.Products(), Message: "Product deleted."})
}

func (a *App) restockHandler(w http.ResponseWriter, r *http.Request) {
	a.stockHandler(w, r, "restock")
}

func (a *App) sellHandler(w http.ResponseWriter, r *http.Request) {
	a.stockHandler(w, r, "sell")
}

func (a *App) stockHandler(w http.ResponseWriter, r *http.Request, kind string) {
	var form model.StockForm
	if !decodeJSON(w, r, &form) {
		return
	}
	amount, err := catalog.ParseAmount(form.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	var p model.Product
	if kind == "sell" {
		p, err = a.Catalog.Sell(r.Context(), id, amount)
	} else {
		p, err = a.Catalog.Restock(r.Context(), id, amount)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := fmt.Sprintf("Restocked %d of %s.", amount, p.Name)
	if kind == "sell" {
		msg = fmt.Sprintf("Sold %d of %s.", amount, p.Name)
	}
	writeJSON(w, http.StatusOK, productResponse{Product: &p, Products: a.Catalog.Products(), Message: msg})
}

// --- users ------------------------------------------------------------------

func (a *App) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.Directory.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Users: users})
}

func (a *App) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var form model.UserForm
	if !decodeJSON(w, r, &form) {
		return
	}
	u, err := a.Directory.CreateUser(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{User: &u, Users: a.Directory.Users(), Message: "User created."})
}

func (a *App) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	var form model.UserForm
	if !decodeJSON(w, r, &form) {
		return
	}
	u, err := a.Directory.UpdateUser(r.Context(), mux.Vars(r)["id"], form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: &u, Users: a.Directory.Users(), Message: "User updated."})
}

func (a *App) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		writeError(w, r, model.ErrConfirmationRequired)
		return
	}
	if err := a.Directory.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Users: a.Directory.Users(), Message: "User deleted."})
}

// --- dashboard and events ---------------------------------------------------

func (a *App) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard.Build(products, a.Cfg.LowStockThreshold))
}

func (a *App) eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = n
	}
	events := []model.Event{}
	if a.Journal != nil {
		events = a.Journal.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
