package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yakoovad/tabletop-hub/internal/repository"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory stand-in for postgres. Transactions snapshot the whole state and
// restore it when the closure fails, which is enough to observe atomicity in tests.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	state memState
	// failOn names a repository method that returns errInjected.
	failOn string
}

type memState struct {
	nextID   int64
	users    map[int64]repository.User
	tokens   map[string]repository.AccessToken
	games    map[int64]repository.Game
	players  map[int64][]repository.Player
	requests map[int64]repository.JoinRequest
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		users:    map[int64]repository.User{},
		tokens:   map[string]repository.AccessToken{},
		games:    map[int64]repository.Game{},
		players:  map[int64][]repository.Player{},
		requests: map[int64]repository.JoinRequest{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		nextID:   s.nextID,
		users:    make(map[int64]repository.User, len(s.users)),
		tokens:   make(map[string]repository.AccessToken, len(s.tokens)),
		games:    make(map[int64]repository.Game, len(s.games)),
		players:  make(map[int64][]repository.Player, len(s.players)),
		requests: make(map[int64]repository.JoinRequest, len(s.requests)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.players {
		c.players[k] = append([]repository.Player(nil), v...)
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memStore) fail(method string) bool {
	return m.failOn == method
}

func (m *memStore) users() *memUsers       { return &memUsers{m} }
func (m *memStore) tokens() *memTokens     { return &memTokens{m} }
func (m *memStore) games() *memGames       { return &memGames{m} }
func (m *memStore) requests() *memRequests { return &memRequests{m} }

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, user *repository.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.state.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrAlreadyExists
		}
	}
	user.ID = r.s.id()
	user.CreatedAt = time.Now()
	r.s.state.users[user.ID] = *user
	return nil
}

func (r *memUsers) Get(_ context.Context, userID int64) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.state.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.state.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memTokens struct{ s *memStore }

func (r *memTokens) Save(_ context.Context, token *repository.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.state.tokens[token.ID] = *token
	return nil
}

func (r *memTokens) Exists(_ context.Context, tokenID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.state.tokens[tokenID]
	return ok && t.ExpiresAt.After(time.Now()), nil
}

func (r *memTokens) Delete(_ context.Context, tokenID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.state.tokens[tokenID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.state.tokens, tokenID)
	return nil
}

type memGames struct{ s *memStore }

func (r *memGames) withOwner(g repository.Game) *repository.Game {
	g.OwnerUsername = r.s.state.users[g.OwnerID].Username
	return &g
}

func (r *memGames) Create(_ context.Context, game *repository.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.state.users[game.OwnerID]; !ok {
		return repository.ErrNotFound
	}
	game.ID = r.s.id()
	game.CreatedAt = time.Now()
	game.UpdatedAt = game.CreatedAt
	r.s.state.games[game.ID] = *game
	return nil
}

func (r *memGames) Get(_ context.Context, gameID int64) (*repository.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.state.games[gameID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withOwner(g), nil
}

func (r *memGames) GetForUpdate(ctx context.Context, gameID int64) (*repository.Game, error) {
	return r.Get(ctx, gameID)
}

func (r *memGames) list(keep func(repository.Game) bool) []*repository.Game {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res := make([]*repository.Game, 0)
	for _, g := range r.s.state.games {
		if keep(g) {
			res = append(res, r.withOwner(g))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *memGames) List(_ context.Context) ([]*repository.Game, error) {
	return r.list(func(repository.Game) bool { return true }), nil
}

func (r *memGames) ListByOwner(_ context.Context, ownerID int64) ([]*repository.Game, error) {
	return r.list(func(g repository.Game) bool { return g.OwnerID == ownerID }), nil
}

func (r *memGames) Patch(_ context.Context, patch *repository.GamePatch) (*repository.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.state.games[patch.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		g.Name = *patch.Name
	}
	if patch.Description != nil {
		g.Description = *patch.Description
	}
	g.UpdatedAt = time.Now()
	r.s.state.games[g.ID] = g
	return &g, nil
}

func (r *memGames) Delete(_ context.Context, gameID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.state.games[gameID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.state.games, gameID)
	delete(r.s.state.players, gameID)
	for id, req := range r.s.state.requests {
		if req.TargetID == gameID {
			delete(r.s.state.requests, id)
		}
	}
	return nil
}

func (r *memGames) AddPlayer(_ context.Context, gameID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.fail("AddPlayer") {
		return false, errInjected
	}
	if _, ok := r.s.state.games[gameID]; !ok {
		return false, repository.ErrNotFound
	}
	for _, p := range r.s.state.players[gameID] {
		if p.UserID == userID {
			return false, nil
		}
	}
	r.s.state.players[gameID] = append(r.s.state.players[gameID], repository.Player{
		UserID:   userID,
		Username: r.s.state.users[userID].Username,
		JoinedAt: time.Now(),
	})
	return true, nil
}

func (r *memGames) IncrementParticipants(_ context.Context, gameID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.state.games[gameID]
	if !ok {
		return repository.ErrNotFound
	}
	g.ParticipantCount++
	r.s.state.games[gameID] = g
	return nil
}

func (r *memGames) IsPlayer(_ context.Context, gameID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.state.players[gameID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memGames) GetPlayers(_ context.Context, gameID int64) ([]*repository.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res := make([]*repository.Player, 0, len(r.s.state.players[gameID]))
	for _, p := range r.s.state.players[gameID] {
		p := p
		res = append(res, &p)
	}
	return res, nil
}

type memRequests struct{ s *memStore }

func (r *memRequests) Create(_ context.Context, req *repository.JoinRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.state.games[req.TargetID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.s.state.requests {
		if existing.RequesterID == req.RequesterID && existing.TargetID == req.TargetID {
			return repository.ErrAlreadyExists
		}
	}
	req.ID = r.s.id()
	req.CreatedAt = time.Now()
	r.s.state.requests[req.ID] = *req
	return nil
}

func (r *memRequests) Get(_ context.Context, requestID int64) (*repository.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.state.requests[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r *memRequests) GetForUpdate(ctx context.Context, requestID int64) (*repository.JoinRequest, error) {
	return r.Get(ctx, requestID)
}

func (r *memRequests) MarkAccepted(_ context.Context, requestID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.fail("MarkAccepted") {
		return errInjected
	}
	req, ok := r.s.state.requests[requestID]
	if !ok || req.Accepted {
		return repository.ErrNotFound
	}
	req.Accepted = true
	req.AcceptedAt = &at
	r.s.state.requests[requestID] = req
	return nil
}

func (r *memRequests) Delete(_ context.Context, requestID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.state.requests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.state.requests, requestID)
	return nil
}

func (r *memRequests) list(keep func(repository.JoinRequest) bool) []*repository.JoinRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res := make([]*repository.JoinRequest, 0)
	for _, req := range r.s.state.requests {
		if keep(req) {
			req := req
			res = append(res, &req)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *memRequests) ListByRequester(_ context.Context, requesterID int64) ([]*repository.JoinRequest, error) {
	return r.list(func(req repository.JoinRequest) bool { return req.RequesterID == requesterID }), nil
}

func (r *memRequests) ListPendingForOwner(_ context.Context, ownerID int64) ([]*repository.JoinRequest, error) {
	r.s.mu.Lock()
	owned := map[int64]bool{}
	for id, g := range r.s.state.games {
		if g.OwnerID == ownerID {
			owned[id] = true
		}
	}
	r.s.mu.Unlock()

	return r.list(func(req repository.JoinRequest) bool { return owned[req.TargetID] && !req.Accepted }), nil
}
