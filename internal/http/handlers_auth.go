package http

import (
	"net/http"

	applog "atlas/internal/log"
)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u, err := s.auth.SignUp(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		writeError(w, r, "signup", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerSuccessNotification("Conta criada. Entre para continuar.").
		JSON(userResponse{ID: u.ID, Email: u.Email}).
		Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	session, err := s.auth.SignIn(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		writeError(w, r, "signin", err)
		return
	}
	s.setSessionCookie(w, r, session)
	NewResponse().JSON(session).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, "signout", err)
		return
	}
	clearSessionCookie(w)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	session.Token = ""
	NewResponse().JSON(session).Write(w)
}

// handleRequestPasswordReset answers 202 whether or not the email exists.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), p.Get("email")); err != nil {
		writeError(w, r, "password_reset", err)
		return
	}
	NewResponse().
		Status(http.StatusAccepted).
		TriggerSuccessNotification("Se o email estiver cadastrado, enviaremos um link de redefinição.").
		Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	if err := s.auth.ResetPassword(r.Context(), p.Get("token"), p.Get("password")); err != nil {
		writeError(w, r, "password_reset_confirm", err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerSuccessNotification("Senha redefinida.").
		Write(w)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	session, _ := SessionFromContext(r.Context())
	if err := s.auth.UpdatePassword(r.Context(), session, p.Get("password")); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerSuccessNotification("Senha atualizada.").
		Write(w)
}
