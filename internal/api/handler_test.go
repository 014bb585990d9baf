package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/tabletop-hub/internal/auth"
	"github.com/yakoovad/tabletop-hub/internal/model"
	"github.com/yakoovad/tabletop-hub/internal/repository"
	"github.com/yakoovad/tabletop-hub/internal/service"
	"go.uber.org/zap"
)

const testCaller = int64(1)

type testServer struct {
	e *echo.Echo

	users    *service.MockUserRepository
	tokens   *service.MockTokenRepository
	sessions *service.MockGameRepository
	requests *service.MockJoinRequestRepository

	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	signed, _, err := issuer.GenerateToken(testCaller)
	require.NoError(t, err)

	s := &testServer{
		e:        echo.New(),
		users:    new(service.MockUserRepository),
		tokens:   new(service.MockTokenRepository),
		sessions: new(service.MockGameRepository),
		requests: new(service.MockJoinRequestRepository),
		token:    signed,
	}
	s.tokens.On("Exists", mock.Anything, mock.Anything).Return(true, nil).Maybe()

	tx := new(service.MockTransactor)
	identity := service.NewIdentityService(tx, issuer).WithUserRepo(s.users).WithTokenRepo(s.tokens)
	games := service.NewGameService(tx, model.GameKindSession).WithGameRepo(s.sessions)
	requests := service.NewJoinRequestService(tx, model.GameKindSession).
		WithGameRepo(s.sessions).
		WithJoinRequestRepo(s.requests)

	NewHandler(zap.NewNop()).
		WithIdentityService(identity).
		WithSessionServices(games, requests).
		WithCampaignServices(
			service.NewGameService(tx, model.GameKindCampaign).WithGameRepo(new(service.MockGameRepository)),
			service.NewJoinRequestService(tx, model.GameKindCampaign),
		).
		RegisterRoutes(s.e)

	return s
}

func (s *testServer) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) service.ErrorCode {
	t.Helper()
	var res errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Error)
	return res.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/me", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.ErrorCodeUnauthorized, errorCode(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.users.On("Get", mock.Anything, testCaller).Return(&repository.User{ID: testCaller, Username: "alice"}, nil)
	rec = s.do(http.MethodGet, "/me", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	var user model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
}

func TestHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*testServer)
		expectedStatus int
		expectedCode   service.ErrorCode
	}{
		{
			name: "success",
			body: `{"username":"bob","email":"bob@example.com","password":"correct-horse"}`,
			setupMocks: func(s *testServer) {
				s.users.On("GetByUsername", mock.Anything, "bob").Return(nil, repository.ErrNotFound)
				s.users.On("GetByEmail", mock.Anything, "bob@example.com").Return(nil, repository.ErrNotFound)
				s.users.On("Create", mock.Anything, mock.Anything).Return(nil)
				s.tokens.On("Save", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "duplicate username",
			body: `{"username":"bob","email":"bob@example.com","password":"correct-horse"}`,
			setupMocks: func(s *testServer) {
				s.users.On("GetByUsername", mock.Anything, "bob").Return(&repository.User{ID: 2}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeConflict,
		},
		{
			name:           "malformed json",
			body:           `{"username":`,
			setupMocks:     func(s *testServer) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:           "missing email",
			body:           `{"username":"bob","password":"correct-horse"}`,
			setupMocks:     func(s *testServer) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s)

			rec := s.do(http.MethodPost, "/register", tt.body, false)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, rec))
			} else {
				var token model.Token
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
				assert.NotEmpty(t, token.Token)
			}

			s.users.AssertExpectations(t)
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	s := newTestServer(t)
	s.tokens.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	rec := s.do(http.MethodGet, "/logout", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logged out")
}

func TestHandler_Games(t *testing.T) {
	game := &repository.Game{ID: 4, OwnerID: 2, OwnerUsername: "bob", Name: "Strahd", ParticipantCount: 1}

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMocks     func(*service.MockGameRepository)
		expectedStatus int
		expectedCode   service.ErrorCode
	}{
		{
			name:   "list empty",
			method: http.MethodGet,
			path:   "/sessions",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("List", mock.Anything).Return([]*repository.Game{}, nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "list",
			method: http.MethodGet,
			path:   "/sessions",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("List", mock.Anything).Return([]*repository.Game{game}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "mine empty",
			method: http.MethodGet,
			path:   "/sessions/mine",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("ListByOwner", mock.Anything, testCaller).Return([]*repository.Game{}, nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "create",
			method: http.MethodPost,
			path:   "/sessions",
			body:   `{"name":"Lost Mine","description":"starter"}`,
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.Game).ID = 5
				}).Return(nil)
				gr.On("AddPlayer", mock.Anything, int64(5), testCaller).Return(true, nil)
				gr.On("Get", mock.Anything, int64(5)).Return(&repository.Game{ID: 5, OwnerID: testCaller, ParticipantCount: 1}, nil)
				gr.On("GetPlayers", mock.Anything, int64(5)).Return([]*repository.Player{{UserID: testCaller}}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "create without name",
			method:         http.MethodPost,
			path:           "/sessions",
			body:           `{"description":"starter"}`,
			setupMocks:     func(gr *service.MockGameRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:   "detail not found",
			method: http.MethodGet,
			path:   "/sessions/4",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("Get", mock.Anything, int64(4)).Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   service.ErrorCodeNotFound,
		},
		{
			name:           "bad id",
			method:         http.MethodGet,
			path:           "/sessions/abc",
			setupMocks:     func(gr *service.MockGameRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:   "update by non-owner",
			method: http.MethodPut,
			path:   "/sessions/4",
			body:   `{"name":"mine now"}`,
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(4)).Return(game, nil)
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   service.ErrorCodeForbidden,
		},
		{
			name:   "update by non-owner with invalid body",
			method: http.MethodPut,
			path:   "/sessions/4",
			body:   `{"name":""}`,
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(4)).Return(game, nil)
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   service.ErrorCodeForbidden,
		},
		{
			name:   "update missing game with invalid body",
			method: http.MethodPut,
			path:   "/sessions/8",
			body:   `{"name":""}`,
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(8)).Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   service.ErrorCodeNotFound,
		},
		{
			name:   "update by owner with invalid body",
			method: http.MethodPut,
			path:   "/sessions/4",
			body:   `{"name":""}`,
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(4)).Return(&repository.Game{ID: 4, OwnerID: testCaller}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:           "update with malformed json",
			method:         http.MethodPut,
			path:           "/sessions/4",
			body:           `{"name":`,
			setupMocks:     func(gr *service.MockGameRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:   "delete by non-owner",
			method: http.MethodDelete,
			path:   "/sessions/4",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(4)).Return(game, nil)
			},
			expectedStatus: http.StatusForbidden,
			expectedCode:   service.ErrorCodeForbidden,
		},
		{
			name:   "delete by owner",
			method: http.MethodDelete,
			path:   "/sessions/4",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("GetForUpdate", mock.Anything, int64(4)).Return(&repository.Game{ID: 4, OwnerID: testCaller}, nil)
				gr.On("Delete", mock.Anything, int64(4)).Return(nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "repository failure",
			method: http.MethodGet,
			path:   "/sessions",
			setupMocks: func(gr *service.MockGameRepository) {
				gr.On("List", mock.Anything).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   service.ErrorCodeUnspecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.sessions)

			rec := s.do(tt.method, tt.path, tt.body, true)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, rec))
			}

			s.sessions.AssertExpectations(t)
		})
	}
}

func TestHandler_JoinRequests(t *testing.T) {
	owned := &repository.Game{ID: 9, OwnerID: testCaller}

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMocks     func(*service.MockGameRepository, *service.MockJoinRequestRepository)
		expectedStatus int
		expectedCode   service.ErrorCode
	}{
		{
			name:   "create",
			method: http.MethodPost,
			path:   "/session-requests",
			body:   `{"target_id":11}`,
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				gr.On("Get", mock.Anything, int64(11)).Return(&repository.Game{ID: 11, OwnerID: 2}, nil)
				gr.On("IsPlayer", mock.Anything, int64(11), testCaller).Return(false, nil)
				rr.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "create duplicate",
			method: http.MethodPost,
			path:   "/session-requests",
			body:   `{"target_id":11}`,
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				gr.On("Get", mock.Anything, int64(11)).Return(&repository.Game{ID: 11, OwnerID: 2}, nil)
				gr.On("IsPlayer", mock.Anything, int64(11), testCaller).Return(false, nil)
				rr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeConflict,
		},
		{
			name:           "create without target",
			method:         http.MethodPost,
			path:           "/session-requests",
			body:           `{}`,
			setupMocks:     func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidBody,
		},
		{
			name:   "accept",
			method: http.MethodPut,
			path:   "/session-requests/30",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				rr.On("GetForUpdate", mock.Anything, int64(30)).Return(&repository.JoinRequest{ID: 30, RequesterID: 2, TargetID: 9}, nil)
				gr.On("GetForUpdate", mock.Anything, int64(9)).Return(owned, nil)
				gr.On("AddPlayer", mock.Anything, int64(9), int64(2)).Return(true, nil)
				gr.On("IncrementParticipants", mock.Anything, int64(9)).Return(nil)
				rr.On("MarkAccepted", mock.Anything, int64(30), mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "accept twice",
			method: http.MethodPut,
			path:   "/session-requests/30",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				rr.On("GetForUpdate", mock.Anything, int64(30)).Return(&repository.JoinRequest{ID: 30, RequesterID: 2, TargetID: 9, Accepted: true}, nil)
				gr.On("GetForUpdate", mock.Anything, int64(9)).Return(owned, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeAlreadyAccepted,
		},
		{
			name:   "withdraw",
			method: http.MethodDelete,
			path:   "/session-requests/30",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				rr.On("GetForUpdate", mock.Anything, int64(30)).Return(&repository.JoinRequest{ID: 30, RequesterID: testCaller, TargetID: 11}, nil)
				rr.On("Delete", mock.Anything, int64(30)).Return(nil)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "withdraw missing",
			method: http.MethodDelete,
			path:   "/session-requests/30",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				rr.On("GetForUpdate", mock.Anything, int64(30)).Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   service.ErrorCodeNotFound,
		},
		{
			name:   "sent empty",
			method: http.MethodGet,
			path:   "/session-requests/sent",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				rr.On("ListByRequester", mock.Anything, testCaller).Return([]*repository.JoinRequest{}, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   service.ErrorCodeNotFound,
		},
		{
			name:   "received",
			method: http.MethodGet,
			path:   "/session-requests/received",
			setupMocks: func(gr *service.MockGameRepository, rr *service.MockJoinRequestRepository) {
				gr.On("ListByOwner", mock.Anything, testCaller).Return([]*repository.Game{owned}, nil)
				rr.On("ListPendingForOwner", mock.Anything, testCaller).Return([]*repository.JoinRequest{{ID: 30, RequesterID: 2, TargetID: 9}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.sessions, s.requests)

			rec := s.do(tt.method, tt.path, tt.body, true)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, rec))
			}

			s.sessions.AssertExpectations(t)
			s.requests.AssertExpectations(t)
		})
	}
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		err            error
		expectedStatus int
	}{
		{service.NewError(service.ErrorCodeConflict, "dup"), http.StatusBadRequest},
		{service.NewError(service.ErrorCodeAlreadyAccepted, "again"), http.StatusBadRequest},
		{service.NewError(service.ErrorCodeInvalidBody, "bad"), http.StatusBadRequest},
		{service.NewError(service.ErrorCodeNotFound, "gone"), http.StatusNotFound},
		{service.NewError(service.ErrorCodeForbidden, "no"), http.StatusForbidden},
		{service.NewError(service.ErrorCodeUnauthorized, "who"), http.StatusUnauthorized},
		{service.NewError(service.ErrorCodeUnspecified, "oops"), http.StatusInternalServerError},
		{errors.New("raw"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, transportError(c, tt.err))
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}
