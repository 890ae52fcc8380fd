package httpapi

import (
	"net/http"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

func (a *App) signUpHandler(w http.ResponseWriter, r *http.Request) {
	var c model.Credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	acc, err := a.Auth.SignUp(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"account": acc, "message": "Account created. You can sign in now."})
}

func (a *App) signInHandler(w http.ResponseWriter, r *http.Request) {
	var c model.Credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	sess, err := a.Auth.SignIn(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *App) signOutHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (a *App) meHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}
	sess.Token = ""
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}
