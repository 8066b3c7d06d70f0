package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/auth"
	"github.com/satriahrh/fixit/server/internal/response"
	"github.com/satriahrh/fixit/server/internal/websocket"
)

const (
	Version      = "0.3.0"
	PipelineName = "enhanced-gate-based"

	defaultListLimit = 20
	maxListLimit     = 100
)

// Troubleshooter runs the full gate pipeline for one request
type Troubleshooter interface {
	Run(ctx context.Context, req entities.AnalysisRequest) (*entities.TroubleshootResponse, error)
}

// ImageAnalyzer serves the standalone validation and identification calls
type ImageAnalyzer interface {
	ValidateImage(ctx context.Context, img *entities.ImagePart, query string) entities.ValidationResult
	DetectDevice(ctx context.Context, img *entities.ImagePart, query string) entities.DeviceProfile
}

// Dependencies are the collaborators the handlers need
type Dependencies struct {
	Pipeline Troubleshooter
	Analyzer ImageAnalyzer
	Images   repositories.ImageProcessor
	Gateway  repositories.ModelGateway
	Log      repositories.AnalysisLog
	Issuer   *auth.Issuer
	Hub      *websocket.Hub
}

type handler struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handler{Dependencies: deps, logger: logger}

	e.GET("/health", h.health)

	api := e.Group("/api")
	api.POST("/troubleshoot", h.troubleshoot)
	api.POST("/validate-image", h.validateImage)
	api.POST("/identify-device", h.identifyDevice)
	api.GET("/quota-status", h.quotaStatus)
	api.POST("/admin/token", h.adminToken)

	api.POST("/reset-quota", h.resetQuota, h.requireAdmin)
	api.GET("/analyses", h.listAnalyses, h.requireAdmin)
	api.GET("/analyses/:request_id", h.getAnalysis, h.requireAdmin)

	// Gate progress for a request, subscribed by request_id
	e.GET("/ws/progress", func(c echo.Context) error {
		return websocket.HandleProgress(h.Hub, c, logger)
	})
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  Version,
		Pipeline: PipelineName,
	})
}

func (h *handler) troubleshoot(c echo.Context) error {
	var req TroubleshootRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind troubleshoot request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.ImageBase64 == "" || req.Query == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "image_base64 and query are required",
		})
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if requestID == "" {
		requestID = c.Response().Header().Get(echo.HeaderXRequestID)
	}

	resp, err := h.Pipeline.Run(c.Request().Context(), entities.AnalysisRequest{
		RequestID:   requestID,
		ImageBase64: req.ImageBase64,
		Query:       req.Query,
		DeviceHint:  strings.TrimSpace(req.DeviceHint),
		ImageWidth:  req.ImageWidth,
		ImageHeight: req.ImageHeight,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidImage) {
			h.logger.Warn("Rejected undecodable image", zap.String("requestID", requestID), zap.Error(err))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_image",
				Message: err.Error(),
			})
		}
		h.logger.Error("Troubleshoot request failed", zap.String("requestID", requestID), zap.Error(err))
		resp = response.ErrorDocument("We couldn't process this photo right now. Please try again in a moment.", "")
		resp.RequestID = requestID
	}

	c.Response().Header().Set(echo.HeaderXRequestID, resp.RequestID)
	return c.JSON(http.StatusOK, resp)
}

// decodeImage binds an ImageRequest and decodes its image. A non-nil
// ErrorResponse is the 400 body to answer with.
func (h *handler) decodeImage(c echo.Context) (*ImageRequest, *entities.ImagePart, *ErrorResponse) {
	var req ImageRequest
	if err := c.Bind(&req); err != nil {
		return nil, nil, &ErrorResponse{Error: "invalid_request", Message: "Invalid request format"}
	}
	if req.ImageBase64 == "" {
		return nil, nil, &ErrorResponse{Error: "missing_fields", Message: "image_base64 is required"}
	}
	img, err := h.Images.Decode(req.ImageBase64)
	if err != nil {
		h.logger.Warn("Rejected undecodable image", zap.Error(err))
		return nil, nil, &ErrorResponse{Error: "invalid_image", Message: err.Error()}
	}
	return &req, img, nil
}

func (h *handler) validateImage(c echo.Context) error {
	req, img, errResp := h.decodeImage(c)
	if errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}
	return c.JSON(http.StatusOK, h.Analyzer.ValidateImage(c.Request().Context(), img, req.Query))
}

func (h *handler) identifyDevice(c echo.Context) error {
	req, img, errResp := h.decodeImage(c)
	if errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}

	ctx := c.Request().Context()
	validation := h.Analyzer.ValidateImage(ctx, img, req.Query)
	if !validation.IsValid {
		return c.JSON(http.StatusOK, IdentifyRejectedResponse{
			Success:    false,
			Reason:     validation.RejectionReason,
			Suggestion: validation.Suggestion,
		})
	}

	device := h.Analyzer.DetectDevice(ctx, img, req.Query)
	return c.JSON(http.StatusOK, IdentifyDeviceResponse{Success: true, DeviceProfile: device})
}

func (h *handler) quotaStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Gateway.QuotaStatus())
}

func (h *handler) resetQuota(c echo.Context) error {
	h.Gateway.ResetBreaker()
	h.logger.Info("Circuit breaker reset by admin", zap.String("remoteAddr", c.RealIP()))
	return c.JSON(http.StatusOK, ResetQuotaResponse{
		Message: "Circuit breaker reset",
		Status:  h.Gateway.QuotaStatus(),
	})
}

func (h *handler) adminToken(c echo.Context) error {
	token, expiresAt, err := h.Issuer.GenerateAdminToken(c.FormValue("admin_key"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAdminKey) {
			h.logger.Warn("Admin token request rejected", zap.String("remoteAddr", c.RealIP()))
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "unauthorized",
				Message: "Unauthorized",
			})
		}
		h.logger.Error("Failed to generate admin token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}
	return c.JSON(http.StatusOK, AdminTokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *handler) listAnalyses(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.Log.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list analyses", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list analyses",
		})
	}
	return c.JSON(http.StatusOK, records)
}

func (h *handler) getAnalysis(c echo.Context) error {
	record, err := h.Log.GetByRequestID(c.Request().Context(), c.Param("request_id"))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "No analysis recorded for this request",
			})
		}
		h.logger.Error("Failed to get analysis", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load the analysis",
		})
	}
	return c.JSON(http.StatusOK, record)
}

// requireAdmin accepts either the admin_key form field or an admin bearer token
func (h *handler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
			if _, err := h.Issuer.ValidateAdminToken(token); err != nil {
				h.logger.Warn("Admin request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired admin token",
				})
			}
			return next(c)
		}

		if !h.Issuer.CheckAdminKey(c.FormValue("admin_key")) {
			h.logger.Warn("Admin request rejected: wrong admin key", zap.String("remoteAddr", c.RealIP()))
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "unauthorized",
				Message: "Unauthorized",
			})
		}
		return next(c)
	}
}
