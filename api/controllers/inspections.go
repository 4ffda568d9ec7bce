package controllers

import (
	"net/http"

	"github.com/emekandu/kasuwa-backend/api/middleware"
	"github.com/emekandu/kasuwa-backend/api/responses"
	"github.com/emekandu/kasuwa-backend/api/validators"
	"github.com/emekandu/kasuwa-backend/internal/inspections"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
)

// AgentFileReport records the agent's assessment of a collected item.
func AgentFileReport(svc inspections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inspections service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req inspections.FileReportRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.FileReport(r.Context(), actor, orderID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// AdminReviewInspection applies the final ruling on a filed report.
func AdminReviewInspection(svc inspections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inspections service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := pathUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req inspections.ReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Review(r.Context(), actor, reportID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// InspectionGet returns a report to its agent or an admin.
func InspectionGet(svc inspections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inspections service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reportID, err := pathUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Get(r.Context(), actor, reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
