package salehttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice/salesyncerrors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const wsWriteTimeout = 5 * time.Second

type SaleHTTPServer interface {
	Handler() http.Handler
	Start(ctx context.Context) error
}

type SaleHTTPServerConfig struct {
	Port       uint
	SiteOrigin string
	// empty allows any websocket origin
	AllowedOrigin string
}

func (c *SaleHTTPServerConfig) validate() error {
	if c.Port == 0 {
		return errors.New("SaleHTTPServerConfig field Port cannot equal to 0")
	}
	if c.SiteOrigin == "" {
		return errors.New("SaleHTTPServerConfig field SiteOrigin cannot be empty")
	}

	return nil
}

type SaleHTTPServerDependencies struct {
	SaleSyncService salesyncservice.SaleSyncService
	Gatherer        prometheus.Gatherer
	Logger          zerolog.Logger
}

func (d *SaleHTTPServerDependencies) validate() error {
	if d.SaleSyncService == nil {
		return errors.New("SaleHTTPServerDependencies field SaleSyncService cannot be nil")
	}

	return nil
}

type saleHTTPServer struct {
	config   SaleHTTPServerConfig
	service  salesyncservice.SaleSyncService
	logger   zerolog.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func New(config SaleHTTPServerConfig, dependencies SaleHTTPServerDependencies) (SaleHTTPServer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	gatherer := dependencies.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &saleHTTPServer{
		config:  config,
		service: dependencies.SaleSyncService,
		logger:  dependencies.Logger.With().Str("component", "sale_http").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if config.AllowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == config.AllowedOrigin
			},
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/state", s.getState)
	r.POST("/connect", s.connect)
	r.POST("/disconnect", s.disconnect)
	r.POST("/purchase", s.purchase)
	r.GET("/leaderboard", s.getLeaderboard)
	r.POST("/leaderboard", s.updateLeaderboard)
	r.GET("/referral-link", s.referralLink)
	r.GET("/ws", s.ws)

	s.engine = r
	return s, nil
}

func (s *saleHTTPServer) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *saleHTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *saleHTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *saleHTTPServer) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Snapshot())
}

func (s *saleHTTPServer) connect(c *gin.Context) {
	state, err := s.service.Connect(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (s *saleHTTPServer) disconnect(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Disconnect())
}

type purchaseRequest struct {
	Amount string `json:"amount" binding:"required"`
	// page the purchase was made from; its ref parameter wins over the request's
	PageURL string `json:"page_url"`
}

func (s *saleHTTPServer) purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is not a number"})
		return
	}

	rawQuery := c.Request.URL.RawQuery
	if req.PageURL != "" {
		if u, err := url.Parse(req.PageURL); err == nil {
			rawQuery = u.RawQuery
		}
	}

	result, err := s.service.Purchase(c.Request.Context(), amount, rawQuery)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *saleHTTPServer) getLeaderboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Snapshot().Leaderboard)
}

type leaderboardRequest struct {
	Dimension string `json:"dimension"`
	Limit     int    `json:"limit"`
}

func (s *saleHTTPServer) updateLeaderboard(c *gin.Context) {
	var req leaderboardRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid leaderboard request"})
			return
		}
	}

	ctx := c.Request.Context()
	var (
		view models.LeaderboardView
		err  error
	)
	switch {
	case req.Dimension != "":
		dimension, parseErr := models.ParseLeaderboardDimension(req.Dimension)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
			return
		}
		view, err = s.service.SelectDimension(ctx, dimension)
		if err == nil && req.Limit != 0 {
			view, err = s.service.ExpandLeaderboard(ctx, req.Limit)
		}
	case req.Limit != 0:
		view, err = s.service.ExpandLeaderboard(ctx, req.Limit)
	default:
		view, err = s.service.RefreshLeaderboard(ctx)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *saleHTTPServer) referralLink(c *gin.Context) {
	link, err := s.service.ReferralLink(s.config.SiteOrigin)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

func (s *saleHTTPServer) ws(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ws upgrade error")
		return
	}
	defer conn.Close()

	states, cancel := s.service.Subscribe()
	defer cancel()

	// the read side only notices the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(state); err != nil {
				s.logger.Debug().Err(err).Msg("ws write failed")
				return
			}
		}
	}
}

// fail maps rejected preconditions to 4xx and failed execution to 502.
func (s *saleHTTPServer) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, salesyncerrors.ErrPurchaseInFlight):
		status = http.StatusConflict
	case errors.Is(err, txsendererrors.ErrWalletNotConnected),
		errors.Is(err, txsendererrors.ErrInvalidAmount),
		errors.Is(err, txsendererrors.ErrInsufficientBalance),
		errors.Is(err, salesyncerrors.ErrNotReady),
		errors.Is(err, salesyncerrors.ErrWrongNetwork),
		errors.Is(err, salesyncerrors.ErrInvalidLimit):
		status = http.StatusBadRequest
	case errors.Is(err, txsendererrors.ErrConfirmationTimeout):
		status = http.StatusGatewayTimeout
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
