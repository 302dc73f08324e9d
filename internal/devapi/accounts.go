package devapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/crypto"
	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/limiter"
	"github.com/and161185/agrimarket/internal/model"
)

// AddUser creates an account with an empty profile. Producers get is_producer on both.
func (s *Server) AddUser(username, password string, producer bool) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, errors.New("empty username/password")
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[strings.ToLower(username)]; taken {
		return model.User{}, errs.ErrAlreadyExists
	}
	u := &account{
		User: model.User{
			ID:         s.nextID(),
			Username:   username,
			Email:      username + "@example.com",
			IsProducer: producer,
		},
		pwdHash: hash,
	}
	s.users[u.ID] = u
	s.byName[strings.ToLower(username)] = u.ID
	now := s.now()
	s.profiles[u.ID] = &model.Profile{
		ID:         u.ID,
		Username:   username,
		Email:      u.Email,
		IsProducer: producer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return u.User, nil
}

func (s *Server) handleObtainToken(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	missing := map[string][]string{}
	if creds.Username == "" {
		missing["username"] = []string{"This field is required."}
	}
	if creds.Password == "" {
		missing["password"] = []string{"This field is required."}
	}
	if len(missing) > 0 {
		writeFields(w, missing)
		return
	}

	ctx := r.Context()
	ipHash := limiter.HashIP(remoteIP(r))
	allowed, _, err := s.lim.Allow(ctx, creds.Username, ipHash)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}
	if !allowed {
		writeDetail(w, http.StatusTooManyRequests, "Too many failed login attempts. Try again later.")
		return
	}

	u, ok := s.checkPassword(creds)
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, creds.Username, ipHash); ferr == nil && blocked {
			writeDetail(w, http.StatusTooManyRequests, "Too many failed login attempts. Try again later.")
			return
		}
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	_ = s.lim.Success(ctx, creds.Username, ipHash)

	access, err := s.tokens.issue(typAccess, u.ID, u.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}
	refresh, err := s.tokens.issue(typRefresh, u.ID, u.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, model.TokenPair{Access: access, Refresh: refresh})
}

func (s *Server) checkPassword(creds model.Credentials) (model.User, bool) {
	s.mu.RLock()
	id, ok := s.byName[strings.ToLower(creds.Username)]
	var acc account
	if ok {
		acc = *s.users[id]
	}
	s.mu.RUnlock()
	if !ok {
		return model.User{}, false
	}
	match, err := crypto.VerifyPassword(creds.Password, acc.pwdHash)
	if err != nil {
		s.log.Warn("stored hash unreadable", zap.Int64("user_id", id), zap.Error(err))
		return model.User{}, false
	}
	return acc.User, match
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Refresh == "" {
		writeFields(w, map[string][]string{"refresh": {"This field is required."}})
		return
	}
	id, err := s.tokens.verify(body.Refresh, typRefresh)
	if err != nil || !s.userExists(id) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	s.mu.RLock()
	name := s.users[id].Username
	s.mu.RUnlock()

	access, err := s.tokens.issue(typAccess, id, name)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p model.RegisterPayload
	if err := decodeJSON(r, &p); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	fields := map[string][]string{}
	if p.Username == "" {
		fields["username"] = append(fields["username"], "This field is required.")
	}
	if p.Email == "" {
		fields["email"] = append(fields["email"], "This field is required.")
	}
	if len(p.Password) < 8 {
		fields["password"] = append(fields["password"], "Ensure this field has at least 8 characters.")
	}
	if p.Password != p.Password2 {
		fields["password"] = append(fields["password"], "Password fields didn't match.")
	}
	if len(fields) > 0 {
		writeFields(w, fields)
		return
	}

	u, err := s.AddUser(p.Username, p.Password, false)
	if errors.Is(err, errs.ErrAlreadyExists) {
		writeFields(w, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal")
		return
	}

	s.mu.Lock()
	acc := s.users[u.ID]
	acc.Email = p.Email
	acc.FirstName = p.FirstName
	acc.LastName = p.LastName
	s.profiles[u.ID].Email = p.Email
	u = acc.User
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromCtx(r.Context())
	s.mu.RLock()
	u := s.users[id].User
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd model.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed body")
		return
	}
	id, _ := UserIDFromCtx(r.Context())
	s.mu.Lock()
	acc := s.users[id]
	if upd.FirstName != nil {
		acc.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		acc.LastName = *upd.LastName
	}
	u := acc.User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
