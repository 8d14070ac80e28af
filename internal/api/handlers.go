package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/ledger"
)

type userView struct {
	Name        string `json:"name"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name"`
	Impersonal  bool   `json:"impersonal"`
}

type balanceView struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Sum         decimal.Decimal `json:"sum"`
}

type memberBalancesView struct {
	User userView      `json:"user"`
	Owes []balanceView `json:"owes"`
}

func viewUser(u *ledger.User) userView {
	return userView{
		Name:        u.Name,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		Impersonal:  u.Impersonal,
	}
}

func viewBalances(entries []ledger.BalanceEntry) []balanceView {
	out := make([]balanceView, 0, len(entries))
	for _, e := range entries {
		out = append(out, balanceView{
			Name:        e.User.Name,
			DisplayName: e.User.DisplayName(),
			Sum:         e.Sum,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// requireUser resolves the authenticated caller to a ledger user. Logged-in
// Discord users who never talked to the bot get a 404.
func (a *API) requireUser(w http.ResponseWriter, r *http.Request) *ledger.User {
	claims := claimsFrom(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	user, err := a.ledger.GetUserByChatID(r.Context(), claims.UserID)
	if err != nil {
		a.log.Error().Err(err).Str("user", claims.UserID).Msg("failed to load user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	if user == nil {
		http.Error(w, "not registered with the bot", http.StatusNotFound)
		return nil
	}
	return user
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, viewUser(user))
}

func (a *API) handleMyBorrowers(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}
	entries, err := a.ledger.GetBorrowers(r.Context(), user.Name)
	if err != nil {
		a.log.Error().Err(err).Str("user", user.Name).Msg("failed to load borrowers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, viewBalances(entries))
}

func (a *API) handleMyDebts(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}
	entries, err := a.ledger.GetCreditors(r.Context(), user.Name)
	if err != nil {
		a.log.Error().Err(err).Str("user", user.Name).Msg("failed to load creditors")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, viewBalances(entries))
}

// handleEventBalances lists who owes whom inside one event, one row per
// member. Only members may look.
func (a *API) handleEventBalances(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}
	name := mux.Vars(r)["name"]
	event, err := a.ledger.GetEvent(r.Context(), name)
	if err != nil {
		a.log.Error().Err(err).Str("event", name).Msg("failed to load event")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if event == nil {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	if !event.HasMember(user.ID) {
		http.Error(w, "not a member of this event", http.StatusForbidden)
		return
	}

	out := make([]memberBalancesView, 0, len(event.Members))
	for _, m := range event.Members {
		entries, err := a.ledger.GetCreditorsInEvent(r.Context(), m.Name, event.Name)
		if err != nil {
			a.log.Error().Err(err).Str("member", m.Name).Msg("failed to load balances")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out = append(out, memberBalancesView{User: viewUser(m), Owes: viewBalances(entries)})
	}
	writeJSON(w, out)
}
