package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/tabletop-hub/internal/service"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

const (
	callerIDKey = "caller_id"
	tokenIDKey  = "token_id"
)

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := res.Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			latency := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", latency),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

// AuthMiddleware accepts "Authorization: Bearer <token>" and rejects everything else with 401.
// The caller id and token id are stored on the echo context.
func AuthMiddleware(identity *service.IdentityService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, errorResponse{
					Error: service.NewError(service.ErrorCodeUnauthorized, "missing bearer token"),
				})
			}

			claims, err := identity.Authenticate(ctx, strings.TrimSpace(token))
			if err != nil {
				return transportError(c, err)
			}

			c.Set(callerIDKey, claims.UserID)
			c.Set(tokenIDKey, claims.TokenID())

			l := logger.FromContext(ctx).With(zap.Int64("caller_id", claims.UserID))
			c.SetRequest(c.Request().WithContext(logger.WithLogger(ctx, l)))

			return next(c)
		}
	}
}

func callerID(c echo.Context) int64 {
	id, _ := c.Get(callerIDKey).(int64)
	return id
}

func tokenID(c echo.Context) string {
	id, _ := c.Get(tokenIDKey).(string)
	return id
}
