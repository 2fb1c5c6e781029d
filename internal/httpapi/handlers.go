package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"matchmaker-backend/internal/engine"
	"matchmaker-backend/internal/hub"
	"matchmaker-backend/internal/queue"
	"matchmaker-backend/internal/session"
	"matchmaker-backend/internal/types"
)

func Enqueue(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
		members := make([]string, 0, len(req.Members))
		ratings := map[string]float64{}
		for _, m := range req.Members {
			members = append(members, m.ID)
			if m.Rating != nil {
				ratings[m.ID] = *m.Rating
			}
		}

		reply := make(chan hub.EnqueueReply, 1)
		h.Inbox() <- hub.EnqueueParty{
			Members: members,
			Ratings: ratings,
			Mode:    engine.Mode(req.Mode),
			Reply:   reply,
		}
		res := <-reply
		if res.Err != nil {
			writeDomainError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusCreated, types.EnqueueResponse{PartyID: res.PartyID})
	}
}

func Dequeue(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan error, 1)
		h.Inbox() <- hub.DequeueParty{PartyID: chi.URLParam(r, "partyID"), Reply: reply}
		if err := <-reply; err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SubmitReady(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ReadyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
		cmdType := engine.CmdSubmitReady
		if req.Accept != nil && !*req.Accept {
			cmdType = engine.CmdDeclineReady
		}
		sendMatchCommand(w, h, chi.URLParam(r, "matchID"), engine.Command{
			Type:     cmdType,
			PlayerID: req.PlayerID,
		})
	}
}

func CastVote(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.VoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
		sendMatchCommand(w, h, chi.URLParam(r, "matchID"), engine.Command{
			Type:     engine.CmdCastVote,
			PlayerID: req.PlayerID,
			MapID:    req.MapID,
		})
	}
}

func FinishMatch(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.FinishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "invalid json")
			return
		}
		sendMatchCommand(w, h, chi.URLParam(r, "matchID"), engine.Command{
			Type:     engine.CmdFinishMatch,
			PlayerID: req.PlayerID,
		})
	}
}

func GetMatch(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan *session.View, 1)
		h.Inbox() <- hub.GetMatch{MatchID: chi.URLParam(r, "matchID"), Reply: reply}
		view := <-reply
		if view == nil {
			writeDomainError(w, engine.ErrNotInMatch)
			return
		}
		writeJSON(w, http.StatusOK, toMatchView(*view))
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func sendMatchCommand(w http.ResponseWriter, h *hub.Hub, matchID string, cmd engine.Command) {
	reply := make(chan error, 1)
	h.Inbox() <- hub.MatchCommand{MatchID: matchID, Cmd: cmd, Reply: reply}
	if err := <-reply; err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toMatchView(v session.View) types.MatchView {
	out := types.MatchView{
		MatchID:   v.MatchID,
		Version:   v.Version,
		Phase:     string(v.State.Phase),
		Mode:      string(v.State.Mode),
		TeamA:     v.State.Teams[0],
		TeamB:     v.State.Teams[1],
		PickedMap: v.State.PickedMap,
		Reason:    string(v.State.Reason),
		CreatedAt: v.State.CreatedAt,
	}
	if c := v.State.Connect; c != nil {
		out.Connect = &types.ConnectPayload{
			Address:  c.Address,
			Password: c.Password,
			MapID:    c.MapID,
			IssuedAt: c.IssuedAt,
		}
	}
	return out
}

// writeDomainError maps sentinel errors onto machine-readable codes so
// the presentation layer never has to guess.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "AlreadyQueued", err.Error())
	case errors.Is(err, queue.ErrInvalidPartySize):
		writeError(w, http.StatusBadRequest, "InvalidPartySize", err.Error())
	case errors.Is(err, queue.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, "UnknownMode", err.Error())
	case errors.Is(err, queue.ErrNotQueued):
		writeError(w, http.StatusNotFound, "NotQueued", err.Error())
	case errors.Is(err, engine.ErrNotInMatch):
		writeError(w, http.StatusNotFound, "NotInMatch", err.Error())
	case errors.Is(err, engine.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, "AlreadyVoted", err.Error())
	case errors.Is(err, engine.ErrUnknownMap):
		writeError(w, http.StatusBadRequest, "UnknownMap", err.Error())
	case errors.Is(err, engine.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "NotAuthorized", err.Error())
	case errors.Is(err, engine.ErrWrongPhase):
		writeError(w, http.StatusConflict, "WrongPhase", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
