package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"atlas/internal/amqp"
	applog "atlas/internal/log"
)

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	snap, err := s.finance.Snapshot(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(snap.Vehicles).Write(w)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := VehicleFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	v, err := s.finance.CreateVehicle(r.Context(), owner(r), form)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerRefetch(amqp.ResourceVehicle, amqp.ActionCreated).
		TriggerSuccessNotification("Veículo cadastrado.").
		JSON(v).
		Write(w)
}

func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	form, err := VehicleFormFromBody(p)
	if err != nil {
		writeError(w, r, applog.OpParse, err)
		return
	}
	v, err := s.finance.UpdateVehicle(r.Context(), owner(r), chi.URLParam(r, "id"), form)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().
		TriggerRefetch(amqp.ResourceVehicle, amqp.ActionUpdated).
		TriggerSuccessNotification("Veículo atualizado.").
		JSON(v).
		Write(w)
}

// handleDeleteVehicle detaches the vehicle's entries; they are kept.
func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteVehicle(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		TriggerRefetch(amqp.ResourceVehicle, amqp.ActionDeleted).
		Write(w)
}

func (s *Server) handleVehicleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.finance.VehicleMetrics(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

func (s *Server) handleRenewalDefaults(w http.ResponseWriter, r *http.Request) {
	renewal, err := s.finance.RenewalDefaults(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(renewal).Write(w)
}

func (s *Server) handleRenewContract(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	v, err := s.finance.RenewContract(r.Context(), owner(r), chi.URLParam(r, "id"), RenewalFormFromBody(p))
	if err != nil {
		writeError(w, r, applog.OpRenew, err)
		return
	}
	NewResponse().
		TriggerRefetch(amqp.ResourceVehicle, amqp.ActionUpdated).
		TriggerSuccessNotification("Contrato renovado.").
		JSON(v).
		Write(w)
}
