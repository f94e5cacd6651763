package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/contentvault/ledger/internal/infrastructure/auth"
	"github.com/contentvault/ledger/internal/infrastructure/redis"
	service "github.com/contentvault/ledger/internal/services"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

type Services struct {
	Accounts service.AccountService
	Ledger   service.LedgerService
	Rewards  service.RewardService
	Content  service.ContentService
}

func SetupRouter(svc Services, redisClient redis.RedisClient, jwtSecret string) *mux.Router {
	r := mux.NewRouter()

	metricsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			endpoint := req.URL.Path
			if route := mux.CurrentRoute(req); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tpl
				}
			}
			method := req.Method

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			status := fmt.Sprintf("%d", recorder.status)
			RequestCounter.WithLabelValues(method, endpoint, status).Inc()
			RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
		}
	}

	r.HandleFunc("/register", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		userID, err := svc.Accounts.Register(req.Context(), body.Username, body.Password)
		if err != nil {
			slog.Error("register failed", "username", body.Username, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int32{"user_id": userID})
	})).Methods(http.MethodPost)

	r.HandleFunc("/login", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		token, err := svc.Accounts.Login(req.Context(), body.Username, body.Password)
		if err != nil {
			slog.Error("login failed", "username", body.Username, "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	})).Methods(http.MethodPost)

	// Browsing is public, the way the original content feed is.
	r.HandleFunc("/content", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		items, err := svc.Content.Browse(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	})).Methods(http.MethodGet)

	r.HandleFunc("/content/{id}", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		contentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		item, likes, err := svc.Content.Get(req.Context(), contentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"content": item, "likes": likes})
	})).Methods(http.MethodGet)

	r.HandleFunc("/content/{id}/comments", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		contentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		comments, err := svc.Content.ListComments(req.Context(), contentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	})).Methods(http.MethodGet)

	// Authenticated routes.
	authHandler := auth.AuthMiddleware(redisClient, jwtSecret)
	protected := r.NewRoute().Subrouter()
	protected.Use(authHandler)

	protected.HandleFunc("/content", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			DimeValue   int32  `json:"dime_value"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		item, err := svc.Content.Publish(req.Context(), userID, body.Title, body.Description, body.DimeValue)
		if err != nil {
			slog.Error("publish failed", "user_id", userID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})).Methods(http.MethodPost)

	protected.HandleFunc("/library", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		items, err := svc.Content.Library(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	})).Methods(http.MethodGet)

	protected.HandleFunc("/content/{id}/like", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		contentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		liked, err := svc.Content.ToggleLike(req.Context(), userID, contentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	})).Methods(http.MethodPost)

	protected.HandleFunc("/content/{id}/comments", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		contentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		var body struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		comment, err := svc.Content.AddComment(req.Context(), userID, contentID, body.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	})).Methods(http.MethodPost)

	protected.HandleFunc("/comments/{id}", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		commentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		if req.Method == http.MethodDelete {
			if err := svc.Content.DeleteComment(req.Context(), commentID, userID); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var body struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := svc.Content.UpdateComment(req.Context(), commentID, userID, body.Body); err != nil {
			writeError(w, err)
			return
		}
		w.Write([]byte("{}"))
	})).Methods(http.MethodPut, http.MethodDelete)

	protected.HandleFunc("/content/{id}/requests", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		contentID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		if req.Method == http.MethodGet {
			requests, err := svc.Ledger.ListRequestsForContent(req.Context(), contentID, userID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, requests)
			return
		}
		var body struct {
			DimeAmount int32 `json:"dime_amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		request, err := svc.Ledger.CreateRequest(req.Context(), contentID, userID, body.DimeAmount)
		if err != nil {
			slog.Error("create request failed", "user_id", userID, "content_id", contentID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, request)
	})).Methods(http.MethodPost, http.MethodGet)

	protected.HandleFunc("/requests", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		requests, err := svc.Ledger.ListMyRequests(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requests)
	})).Methods(http.MethodGet)

	protected.HandleFunc("/requests/{id}", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		requestID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		if req.Method == http.MethodDelete {
			if err := svc.Ledger.CancelRequest(req.Context(), requestID, userID); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var body struct {
			DimeAmount int32 `json:"dime_amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := svc.Ledger.UpdateRequest(req.Context(), requestID, userID, body.DimeAmount); err != nil {
			writeError(w, err)
			return
		}
		w.Write([]byte("{}"))
	})).Methods(http.MethodPut, http.MethodDelete)

	protected.HandleFunc("/requests/{id}/accept", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		requestID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		result, err := svc.Ledger.AcceptRequest(req.Context(), requestID, userID)
		if err != nil {
			slog.Error("accept failed", "user_id", userID, "request_id", requestID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})).Methods(http.MethodPost)

	protected.HandleFunc("/requests/{id}/reject", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		requestID, ok := pathID(w, req, "id")
		if !ok {
			return
		}
		if err := svc.Ledger.RejectRequest(req.Context(), requestID, userID); err != nil {
			slog.Error("reject failed", "user_id", userID, "request_id", requestID, "error", err)
			writeError(w, err)
			return
		}
		w.Write([]byte("{}"))
	})).Methods(http.MethodPost)

	protected.HandleFunc("/balance", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		balance, err := svc.Accounts.GetBalance(req.Context(), userID)
		if err != nil {
			slog.Error("get balance failed", "user_id", userID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int32{"balance": balance})
	})).Methods(http.MethodGet)

	protected.HandleFunc("/history", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		history, err := svc.Accounts.GetHistory(req.Context(), userID)
		if err != nil {
			slog.Error("get history failed", "user_id", userID, "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	})).Methods(http.MethodGet)

	protected.HandleFunc("/rewards/checkin", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		reward, balance, err := svc.Rewards.CheckIn(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int32{"reward": reward, "balance": balance})
	})).Methods(http.MethodPost)

	protected.HandleFunc("/rewards/spin", metricsMiddleware(func(w http.ResponseWriter, req *http.Request) {
		userID := req.Context().Value("user_id").(int32)
		if req.Method == http.MethodGet {
			status, err := svc.Rewards.SpinStatus(req.Context(), userID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, status)
			return
		}
		reward, balance, status, err := svc.Rewards.Spin(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"reward":  reward,
			"balance": balance,
			"status":  status,
		})
	})).Methods(http.MethodPost, http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func pathID(w http.ResponseWriter, req *http.Request, name string) (int32, bool) {
	raw := mux.Vars(req)[name]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 1 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return int32(id), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

func statusForError(err error) int {
	switch {
	case stderrors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case stderrors.Is(err, pkgerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, pkgerrors.ErrForbidden),
		stderrors.Is(err, pkgerrors.ErrNotOwnerEligible):
		return http.StatusForbidden
	case stderrors.Is(err, pkgerrors.ErrNotFound),
		stderrors.Is(err, pkgerrors.ErrAccountNotFound),
		stderrors.Is(err, pkgerrors.ErrContentNotFound),
		stderrors.Is(err, pkgerrors.ErrRequestNotFound),
		stderrors.Is(err, pkgerrors.ErrCommentNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, pkgerrors.ErrDuplicateRequest),
		stderrors.Is(err, pkgerrors.ErrUsernameExists),
		stderrors.Is(err, pkgerrors.ErrAlreadyCheckedIn),
		stderrors.Is(err, pkgerrors.ErrNoSpinsRemaining),
		stderrors.Is(err, pkgerrors.ErrInsufficientFunds),
		stderrors.Is(err, pkgerrors.ErrRequestLocked):
		return http.StatusConflict
	case stderrors.Is(err, pkgerrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
