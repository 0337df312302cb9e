package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the domain services the handlers call
type Services struct {
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Brands   *service.BrandService
	Tags     *service.TagService
	Wishlist *service.WishlistService
	Images   *service.ImageService
	Users    *service.UserService
	Shipping *service.ShippingResolver
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	authn  AuthSettings
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, authn AuthSettings, checks map[string]Pinger) *Handler {
	return &Handler{
		svc:    svc,
		authn:  authn,
		checks: checks,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(h.sessionMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := requireAdmin()

	api := router.Group("/api")
	{
		api.GET("/products", h.listProducts)
		api.POST("/products", admin, h.createProduct)
		api.GET("/products/:id", h.getProduct)
		api.PATCH("/products/:id", admin, h.updateProduct)
		api.DELETE("/products/:id", admin, h.deleteProduct)

		api.GET("/brands", h.listBrands)
		api.POST("/brands", admin, h.createBrand)
		api.GET("/brands/:id", h.getBrand)
		api.PUT("/brands/:id", admin, h.updateBrand)
		api.DELETE("/brands/:id", admin, h.deleteBrand)

		api.GET("/tags", h.listTags)
		api.POST("/tags", admin, h.createTag)
		api.PUT("/tags/:id", admin, h.updateTag)
		api.DELETE("/tags/:id", admin, h.deleteTag)

		api.POST("/orders", h.createOrder)
		api.GET("/orders", admin, h.listOrders)
		api.GET("/orders/:id", admin, h.getOrder)
		api.PATCH("/orders/:id", admin, h.updateOrderStatus)

		api.GET("/shipping", h.shippingRates)

		api.GET("/wishlist", requireUser(), h.listWishlist)
		api.GET("/wishlist/:productId", h.wishlistStatus)
		api.POST("/wishlist/toggle", h.toggleWishlist)

		api.POST("/images", admin, h.uploadImage)
		api.GET("/images", h.listImages)
		api.DELETE("/images/:id", admin, h.deleteImage)

		api.GET("/auth/login", h.login)
		api.GET("/auth/callback", h.callback)
		api.GET("/auth/session", h.session)
		api.POST("/auth/logout", h.logout)
	}

	pages := router.Group("/admin", adminPageGate())
	{
		pages.GET("/dashboard", h.dashboard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency the service cannot run without
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) dashboard(c *gin.Context) {
	sum, err := service.Dashboard(c.Request.Context(), h.svc.Orders, h.svc.Catalog)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// writeError renders err as {"error", "details"}. Unclassified errors are logged and hidden.
func (h *Handler) writeError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.Internal {
		body := gin.H{"error": ae.Message}
		if len(ae.Fields) > 0 {
			body["details"] = ae.Fields
		}
		c.AbortWithStatusJSON(ae.Kind.Status, body)
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badBody(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "invalid request body",
		"details": []string{err.Error()},
	})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidFields(name)
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidFields(name)
	}
	return n, nil
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.InvalidFields(name)
	}
	return &n, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.InvalidFields(name)
	}
	return &b, nil
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// claimsFrom returns the session claims set by sessionMiddleware, nil when signed out
func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
