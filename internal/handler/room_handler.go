package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// HandleListRooms returns the active room list for lobbies and room pickers.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := deps.Store.Rooms.ListActive(r.Context())
		if err != nil {
			logx.Error(err, "failed to list active rooms")
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		resp.RespondSuccess(w, r, rooms)
	}
}

// HandleListRoomUsers returns the current occupants of a room from the
// presence registry. An unknown or empty room answers with an empty list;
// occupancy is ephemeral and never an error.
func HandleListRoomUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		resp.RespondSuccess(w, r, deps.Gateway.Presence().List(name))
	}
}
