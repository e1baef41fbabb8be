package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"raffle-checkout/internal/backend"
	"raffle-checkout/internal/checkout"
	"raffle-checkout/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	checkoutService *checkout.Service
	backendClient   *backend.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(checkoutService *checkout.Service, backendClient *backend.Client) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		backendClient:   backendClient,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rifas", h.listRaffles)
		v1.GET("/rifas/:id", h.getRaffle)

		v1.POST("/checkout", h.startCheckout)
		v1.GET("/checkout/:id", h.loadCheckout)
		v1.POST("/checkout/:id/verify", h.verifyPayment)
		v1.GET("/checkout/:id/pix-code", h.pixCode)
		v1.POST("/checkout/:id/comprovante", h.submitProof)
		v1.DELETE("/checkout/:id", h.closeCheckout)

		v1.POST("/compras/:id/aprovar", h.approvePurchase)
		v1.POST("/compras/:id/rejeitar", h.rejectPurchase)
		v1.GET("/compras/rifa/:id/pendentes", h.pendingProofs)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"offline": h.backendClient.Offline(),
		"time":    time.Now().Unix(),
	})
}

// listRaffles returns the raffle catalog
func (h *Handler) listRaffles(c *gin.Context) {
	raffles, err := h.backendClient.ListRaffles(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffles": raffles})
}

// getRaffle returns a single raffle
func (h *Handler) getRaffle(c *gin.Context) {
	raffle, err := h.backendClient.GetRaffle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, raffle)
}

// startCheckout reserves numbers and prepares the payment step
func (h *Handler) startCheckout(c *gin.Context) {
	var req checkout.StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.checkoutService.StartCheckout(c.Request.Context(), bearerToken(c), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// loadCheckout returns the current checkout view for a purchase
func (h *Handler) loadCheckout(c *gin.Context) {
	view, err := h.checkoutService.LoadCheckout(c.Request.Context(), bearerToken(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// verifyPayment runs a user-triggered PIX status check
func (h *Handler) verifyPayment(c *gin.Context) {
	result, err := h.checkoutService.VerifyPayment(c.Request.Context(), bearerToken(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// pixCode returns the copy-and-paste PIX payload
func (h *Handler) pixCode(c *gin.Context) {
	payload, ok, err := h.checkoutService.PixPayload(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No PIX code available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pix_code": payload})
}

// submitProof accepts the proof-of-payment image upload
func (h *Handler) submitProof(c *gin.Context) {
	fileHeader, err := c.FormFile("comprovante")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing comprovante file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable comprovante file"})
		return
	}
	defer file.Close()

	ack, err := h.checkoutService.SubmitProof(
		c.Request.Context(),
		bearerToken(c),
		c.Param("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ack)
}

// closeCheckout discards the live checkout flow
func (h *Handler) closeCheckout(c *gin.Context) {
	h.checkoutService.CloseCheckout(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// reviewRequest carries the seller's decision note
type reviewRequest struct {
	Observation string `json:"observacao" binding:"required"`
}

// approvePurchase applies a seller approval
func (h *Handler) approvePurchase(c *gin.Context) {
	h.reviewPurchase(c, true)
}

// rejectPurchase applies a seller rejection
func (h *Handler) rejectPurchase(c *gin.Context) {
	h.reviewPurchase(c, false)
}

func (h *Handler) reviewPurchase(c *gin.Context, approve bool) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	err := h.checkoutService.ReviewPurchase(c.Request.Context(), bearerToken(c), c.Param("id"), req.Observation, approve)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pendingProofs lists a raffle's purchases awaiting proof review
func (h *Handler) pendingProofs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))

	pending, err := h.checkoutService.PendingProofs(c.Request.Context(), bearerToken(c), c.Param("id"), page)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// writeError maps service errors to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrCheckoutNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout not found"})
	case errors.Is(err, checkout.ErrNotImage),
		errors.Is(err, checkout.ErrProofTooLarge),
		errors.Is(err, checkout.ErrObservationTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrReservationExpired),
		errors.Is(err, checkout.ErrFlowClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrInstructionsMissing),
		errors.Is(err, checkout.ErrUnknownPaymentType):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, backend.ErrOffline),
		errors.Is(err, backend.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Backend unavailable"})
	default:
		if apiErr, ok := backend.AsAPIError(err); ok {
			c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// bearerToken extracts the caller's bearer token, forwarded verbatim to
// the backend.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
