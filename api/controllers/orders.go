package controllers

import (
	"net/http"

	"github.com/emekandu/kasuwa-backend/api/middleware"
	"github.com/emekandu/kasuwa-backend/api/responses"
	"github.com/emekandu/kasuwa-backend/api/validators"
	"github.com/emekandu/kasuwa-backend/internal/orders"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
)

// ItemBuy opens a direct purchase of a listing at the asking price.
func ItemBuy(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "itemId")
		if err != nil {
			return nil, err
		}
		return svc.Purchase(r.Context(), actor, id)
	})
}

// OrdersListMine returns orders where the caller is buyer or seller.
func OrdersListMine(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.ListMine(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// OrderDetail returns one order to its participants.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// OrderHistory returns the append-only event trail.
func OrderHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.History(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": events})
	}
}

// OrderCancel lets the buyer back out before the item reaches the warehouse flow.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Cancel(r.Context(), actor, id)
	})
}

// OrderConfirmReceipt completes a delivered order.
func OrderConfirmReceipt(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.ConfirmReceipt(r.Context(), actor, id)
	})
}

// OrderDispute opens a dispute on a delivered order.
func OrderDispute(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		var req orders.DisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Dispute(r.Context(), actor, id, req)
	})
}

// OrderClaimPayout releases the seller's proceeds for a completed order.
func OrderClaimPayout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.ClaimPayout(r.Context(), actor, id)
	})
}

// AgentOrderQueue lists unclaimed paid orders awaiting assessment.
func AgentOrderQueue(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.AgentQueue(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// AgentAssignedOrders lists orders claimed by the calling agent.
func AgentAssignedOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.AgentAssigned(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// AgentAcceptOrder claims an order from the assessment queue.
func AgentAcceptOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.AcceptAssessment(r.Context(), actor, id)
	})
}

// AdminAdvanceOrder moves fulfilment one logistics hop.
func AdminAdvanceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		var req orders.LogisticsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.AdvanceLogistics(r.Context(), actor, id, req)
	})
}

// AdminResolveDispute rules on a disputed order.
func AdminResolveDispute(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, svc orders.Service) (any, error) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			return nil, err
		}
		id, err := pathUUID(r, "orderId")
		if err != nil {
			return nil, err
		}
		var req orders.ResolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.ResolveDispute(r.Context(), actor, id, req)
	})
}

func orderAction(svc orders.Service, logg *logger.Logger, fn func(*http.Request, orders.Service) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		resp, err := fn(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
