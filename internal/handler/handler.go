package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/metrics"
	"github.com/set-night/chatapp/internal/middleware"
	"github.com/set-night/chatapp/internal/repository"
	"github.com/set-night/chatapp/internal/service"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies needed by the HTTP handlers.
type Handler struct {
	cfg           *config.Config
	store         Pinger
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	usage         *repository.UsageRepository
	users         *service.UserService
	relay         *service.Relay
	catalog       *service.Catalog
	metrics       *metrics.Metrics
	limiter       *middleware.RateLimiter
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg           *config.Config
	Store         Pinger
	Conversations *repository.ConversationRepository
	Messages      *repository.MessageRepository
	Usage         *repository.UsageRepository
	Users         *service.UserService
	Relay         *service.Relay
	Catalog       *service.Catalog
	Metrics       *metrics.Metrics
	Limiter       *middleware.RateLimiter
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		cfg:           deps.Cfg,
		store:         deps.Store,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		usage:         deps.Usage,
		users:         deps.Users,
		relay:         deps.Relay,
		catalog:       deps.Catalog,
		metrics:       deps.Metrics,
		limiter:       deps.Limiter,
	}
}

// Router builds the HTTP routes behind the CORS policy.
func (h *Handler) Router() http.Handler {
	return h.cors().Handler(h.routes())
}

// cors answers browser preflights before routing. Origins come from
// configuration; no origins means any origin.
func (h *Handler) cors() *cors.Cors {
	var origins []string
	if h.cfg != nil {
		origins = h.cfg.CORSAllowedOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.UserIDHeader},
		MaxAge:         600,
	})
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recover(), middleware.Logging(h.metrics))
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.notFound)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/models", h.ListModels).Methods(http.MethodGet)

	// Routes below act on behalf of a user.
	user := api.NewRoute().Subrouter()
	user.Use(middleware.UserLoader(h.users))

	user.HandleFunc("/usage", h.GetUsage).Methods(http.MethodGet)

	// Conversations
	user.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	user.HandleFunc("/conversations", h.CreateConversation).Methods(http.MethodPost)
	user.HandleFunc("/conversations/view", h.ConversationView).Methods(http.MethodGet)
	user.HandleFunc("/conversations/{id}", h.GetConversation).Methods(http.MethodGet)
	user.HandleFunc("/conversations/{id}", h.UpdateConversation).Methods(http.MethodPut)
	user.HandleFunc("/conversations/{id}", h.DeleteConversation).Methods(http.MethodDelete)
	user.HandleFunc("/conversations/{id}/archive", h.ArchiveConversation).Methods(http.MethodPut)
	user.HandleFunc("/conversations/{id}/pin", h.PinConversation).Methods(http.MethodPut)

	// Messages
	user.HandleFunc("/conversations/{id}/messages", h.ListMessages).Methods(http.MethodGet)
	user.Handle("/conversations/{id}/messages",
		middleware.RateLimit(h.limiter)(http.HandlerFunc(h.SendMessage))).Methods(http.MethodPost)
	for _, prefix := range []string{"/messages", "/conversations/messages"} {
		user.HandleFunc(prefix+"/{id}", h.EditMessage).Methods(http.MethodPut)
		user.HandleFunc(prefix+"/{id}", h.DeleteMessage).Methods(http.MethodDelete)
	}

	return r
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"message": "Endpoint not found",
			"status":  http.StatusNotFound,
		},
	})
}
