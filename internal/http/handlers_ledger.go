package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"atlas/internal/amqp"
	"atlas/internal/core"
	applog "atlas/internal/log"
)

type entriesPage struct {
	Entries []core.Entry `json:"entries"`
	Total   int          `json:"total"`
	Offset  int          `json:"offset"`
	Limit   int          `json:"limit"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.finance.Snapshot(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(snap).Write(w)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	snap, err := s.finance.Snapshot(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(snap.Categories).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := CategoryFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	c, err := s.finance.CreateCategory(r.Context(), owner(r), form)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerRefetch(amqp.ResourceCategory, amqp.ActionCreated).
		TriggerSuccessNotification("Categoria criada.").
		JSON(c).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := CategoryFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	c, err := s.finance.UpdateCategory(r.Context(), owner(r), chi.URLParam(r, "id"), form)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().
		TriggerRefetch(amqp.ResourceCategory, amqp.ActionUpdated).
		TriggerSuccessNotification("Categoria atualizada.").
		JSON(c).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteCategory(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerRefetch(amqp.ResourceCategory, amqp.ActionDeleted).
		Write(w)
}

// Entries

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	page := ParsePageParams(r.URL.Query())
	entries, total, err := s.finance.ListEntries(r.Context(), owner(r), page.Offset, page.Limit)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	NewResponse().JSON(entriesPage{
		Entries: entries,
		Total:   total,
		Offset:  page.Offset,
		Limit:   page.Limit,
	}).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := EntryFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	e, err := s.finance.CreateEntry(r.Context(), owner(r), form)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerRefetch(amqp.ResourceEntry, amqp.ActionCreated).
		TriggerSuccessNotification("Lançamento registrado.").
		JSON(e).
		Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := EntryFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	id := chi.URLParam(r, "id")
	form.EditingID = id
	e, err := s.finance.UpdateEntry(r.Context(), owner(r), id, form)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().
		TriggerRefetch(amqp.ResourceEntry, amqp.ActionUpdated).
		TriggerSuccessNotification("Lançamento atualizado.").
		JSON(e).
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteEntry(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerRefetch(amqp.ResourceEntry, amqp.ActionDeleted).
		Write(w)
}
