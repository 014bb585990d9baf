package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/service"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	identity *service.IdentityService

	sessions  *service.GameService
	campaigns *service.GameService

	sessionRequests  *service.JoinRequestService
	campaignRequests *service.JoinRequestService

	healthChecker HealthChecker

	logger *zap.Logger
}

type errorResponse struct {
	Error *service.Error `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithIdentityService(identity *service.IdentityService) *Handler {
	h.identity = identity
	return h
}

func (h *Handler) WithSessionServices(games *service.GameService, requests *service.JoinRequestService) *Handler {
	h.sessions = games
	h.sessionRequests = requests
	return h
}

func (h *Handler) WithCampaignServices(games *service.GameService, requests *service.JoinRequestService) *Handler {
	h.campaigns = games
	h.campaignRequests = requests
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	e.POST("/register", h.Register)
	e.POST("/login", h.Login)

	secured := e.Group("", AuthMiddleware(h.identity))

	secured.GET("/logout", h.Logout)
	secured.GET("/me", h.Me)

	h.registerGameRoutes(secured.Group("/sessions"), h.sessions)
	h.registerGameRoutes(secured.Group("/campaigns"), h.campaigns)

	h.registerRequestRoutes(secured.Group("/session-requests"), h.sessionRequests)
	h.registerRequestRoutes(secured.Group("/campaign-requests"), h.campaignRequests)
}

func (h *Handler) registerGameRoutes(g *echo.Group, games *service.GameService) {
	g.GET("", h.listGames(games))
	g.POST("", h.createGame(games))
	g.GET("/mine", h.listMyGames(games))
	g.GET("/:id", h.getGame(games))
	g.PUT("/:id", h.updateGame(games))
	g.DELETE("/:id", h.deleteGame(games))
}

func (h *Handler) registerRequestRoutes(g *echo.Group, requests *service.JoinRequestService) {
	g.POST("", h.createRequest(requests))
	g.GET("/sent", h.listSentRequests(requests))
	g.GET("/received", h.listReceivedRequests(requests))
	g.PUT("/:id", h.acceptRequest(requests))
	g.DELETE("/:id", h.withdrawRequest(requests))
}

func (h *Handler) Register(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.Registration
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Error(err))
		return transportError(e, err)
	}

	l.Info("registering user", zap.String("username", req.Username))

	token, err := h.identity.Register(e.Request().Context(), &req)
	if err != nil {
		l.Error("failed to register user", zap.String("username", req.Username), zap.Error(err))
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, token)
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.Credentials
	if err := decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Error(err))
		return transportError(e, err)
	}

	token, err := h.identity.Login(e.Request().Context(), &req)
	if err != nil {
		l.Warn("login failed", zap.String("username", req.Username), zap.Error(err))
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, token)
}

func (h *Handler) Logout(e echo.Context) error {
	if err := h.identity.Logout(e.Request().Context(), tokenID(e)); err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) Me(e echo.Context) error {
	user, err := h.identity.GetProfile(e.Request().Context(), callerID(e))
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, user)
}

func (h *Handler) listGames(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		res, err := games.List(e.Request().Context())
		if err != nil {
			return transportError(e, err)
		}
		return listOrNoContent(e, res)
	}
}

func (h *Handler) listMyGames(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		res, err := games.ListMine(e.Request().Context(), callerID(e))
		if err != nil {
			return transportError(e, err)
		}
		return listOrNoContent(e, res)
	}
}

func (h *Handler) createGame(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		l := logger.FromContext(e.Request().Context())

		var req model.GameInput
		if err := decodeRequest(e, &req); err != nil {
			l.Warn("invalid request", zap.Error(err))
			return transportError(e, err)
		}

		l.Info("creating game", zap.String("kind", string(games.Kind())), zap.String("name", req.Name))

		game, err := games.Create(e.Request().Context(), callerID(e), &req)
		if err != nil {
			l.Error("failed to create game", zap.String("kind", string(games.Kind())), zap.Error(err))
			return transportError(e, err)
		}

		return e.JSON(http.StatusCreated, game)
	}
}

func (h *Handler) getGame(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		id, err := pathID(e, "id")
		if err != nil {
			return transportError(e, err)
		}

		game, err := games.Get(e.Request().Context(), id)
		if err != nil {
			return transportError(e, err)
		}
		return e.JSON(http.StatusOK, game)
	}
}

func (h *Handler) updateGame(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		l := logger.FromContext(e.Request().Context())

		id, err := pathID(e, "id")
		if err != nil {
			return transportError(e, err)
		}

		// validated by the service once existence and ownership are settled
		var req model.GameInput
		if err = bindBody(e, &req); err != nil {
			l.Warn("invalid request", zap.Error(err))
			return transportError(e, err)
		}

		game, err := games.Update(e.Request().Context(), id, callerID(e), &req)
		if err != nil {
			l.Warn("failed to update game", zap.String("kind", string(games.Kind())), zap.Int64("game_id", id), zap.Error(err))
			return transportError(e, err)
		}
		return e.JSON(http.StatusOK, game)
	}
}

func (h *Handler) deleteGame(games *service.GameService) echo.HandlerFunc {
	return func(e echo.Context) error {
		id, err := pathID(e, "id")
		if err != nil {
			return transportError(e, err)
		}

		if err = games.Delete(e.Request().Context(), id, callerID(e)); err != nil {
			logger.FromContext(e.Request().Context()).Warn("failed to delete game",
				zap.String("kind", string(games.Kind())),
				zap.Int64("game_id", id),
				zap.Error(err))
			return transportError(e, err)
		}
		return e.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) createRequest(requests *service.JoinRequestService) echo.HandlerFunc {
	return func(e echo.Context) error {
		l := logger.FromContext(e.Request().Context())

		var req struct {
			TargetID int64 `json:"target_id" validate:"required,gt=0"`
		}
		if err := decodeRequest(e, &req); err != nil {
			l.Warn("invalid request", zap.Error(err))
			return transportError(e, err)
		}

		created, err := requests.Create(e.Request().Context(), callerID(e), req.TargetID)
		if err != nil {
			l.Warn("failed to create join request",
				zap.String("kind", string(requests.Kind())),
				zap.Int64("target_id", req.TargetID),
				zap.Error(err))
			return transportError(e, err)
		}
		return e.JSON(http.StatusCreated, created)
	}
}

func (h *Handler) acceptRequest(requests *service.JoinRequestService) echo.HandlerFunc {
	return func(e echo.Context) error {
		id, err := pathID(e, "id")
		if err != nil {
			return transportError(e, err)
		}

		accepted, err := requests.Accept(e.Request().Context(), id, callerID(e))
		if err != nil {
			return transportError(e, err)
		}

		return e.JSON(http.StatusOK, struct {
			messageResponse
			Request *model.JoinRequest `json:"request"`
		}{
			messageResponse: messageResponse{Message: "the request has been accepted"},
			Request:         accepted,
		})
	}
}

func (h *Handler) withdrawRequest(requests *service.JoinRequestService) echo.HandlerFunc {
	return func(e echo.Context) error {
		id, err := pathID(e, "id")
		if err != nil {
			return transportError(e, err)
		}

		if err = requests.Withdraw(e.Request().Context(), id, callerID(e)); err != nil {
			return transportError(e, err)
		}
		return e.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) listSentRequests(requests *service.JoinRequestService) echo.HandlerFunc {
	return func(e echo.Context) error {
		res, err := requests.ListSent(e.Request().Context(), callerID(e))
		if err != nil {
			return transportError(e, err)
		}
		return e.JSON(http.StatusOK, res)
	}
}

func (h *Handler) listReceivedRequests(requests *service.JoinRequestService) echo.HandlerFunc {
	return func(e echo.Context) error {
		res, err := requests.ListReceived(e.Request().Context(), callerID(e))
		if err != nil {
			return transportError(e, err)
		}
		return e.JSON(http.StatusOK, res)
	}
}

func listOrNoContent[T any](e echo.Context, items []T) error {
	if len(items) == 0 {
		return e.NoContent(http.StatusNoContent)
	}
	return e.JSON(http.StatusOK, items)
}

func transportError(e echo.Context, err error) error {
	serviceErr := service.AsError(err)
	response := errorResponse{Error: serviceErr}

	switch serviceErr.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeConflict, service.ErrorCodeAlreadyAccepted, service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
