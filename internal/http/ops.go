package httpapi

import (
	"context"
	"net/http"
	"time"

	httpopenapi "github.com/fairyhunter13/cafe-inventory/internal/http/openapi"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if a.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.pinger(ctx); err != nil {
			obs.Logger.Warnw("health_store_unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store_unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"uptime_sec": time.Since(a.started).Seconds(),
	}
	if a.Manager != nil {
		enq, proc, backlog, depth := a.Manager.QueueMetrics()
		m["events_enqueued"] = enq
		m["events_processed"] = proc
		m["backlog_size"] = backlog
		m["queue_depth"] = depth
		m["worker_count"] = a.Manager.WorkerCount()
		m["last_sequence"] = a.Manager.LastSequence()
	}
	if a.Auth != nil {
		m["active_sessions"] = a.Auth.ActiveSessions()
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Café Inventory API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
