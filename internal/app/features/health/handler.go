package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Log    *zap.Logger
	now    func() time.Time
}

// NewHandler constructs a health Handler with the Mongo client and logger.
func NewHandler(client *mongo.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Log:    logger,
		now:    time.Now,
	}
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Error     string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "success":true, "message":"Server is running", "timestamp":"…", "database":"connected" }
//
// On DB failure: 503 with success false and database "disconnected".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Database:  "connected",
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Success = false
		resp.Message = "Database unavailable"
		resp.Database = "disconnected"
		resp.Error = err.Error()
		jsonresp.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	jsonresp.OK(w, resp)
}
