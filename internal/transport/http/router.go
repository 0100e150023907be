package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires every route of the service.
func NewRouter(surveys *SurveyHandler, results *ResultsWSHandler, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log.Named("access")))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/surveys/{slug}", surveys.ServeSurvey).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/surveys/{slug}/success", surveys.ServeSuccess).Methods(http.MethodGet)
	r.HandleFunc("/surveys/{slug}/results", surveys.ServeResults).Methods(http.MethodGet)
	r.HandleFunc("/surveys/{slug}/results/ws", results.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/article", surveys.AttachArticle).Methods(http.MethodPut)
	return r
}
