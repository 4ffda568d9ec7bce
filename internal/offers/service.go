package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/internal/items"
	"github.com/emekandu/kasuwa-backend/internal/notifications"
	dbpkg "github.com/emekandu/kasuwa-backend/pkg/db"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	Notify(ctx context.Context, note notifications.Note) error
	NotifyAll(ctx context.Context, notes []notifications.Note) error
}

type orderOpener interface {
	OpenFromOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer) (*models.Order, error)
}

// Service drives the turn-based negotiation over a listing.
type Service interface {
	Create(ctx context.Context, actor types.Actor, itemID uuid.UUID, req CreateOfferRequest) (*OfferSummary, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*OfferSummary, error)
	ListMine(ctx context.Context, actor types.Actor, params pagination.Params) ([]OfferSummary, string, error)
	Counter(ctx context.Context, actor types.Actor, id uuid.UUID, req CounterOfferRequest) (*OfferSummary, error)
	Accept(ctx context.Context, actor types.Actor, id uuid.UUID) (*AcceptResult, error)
	Reject(ctx context.Context, actor types.Actor, id uuid.UUID) (*OfferSummary, error)
}

type service struct {
	repo     Repository
	itemRepo items.Repository
	orders   orderOpener
	tx       txRunner
	events   eventEmitter
	notify   notifier
}

// NewService wires the offers service dependencies.
func NewService(repo Repository, itemRepo items.Repository, orders orderOpener, tx txRunner, events eventEmitter, notify notifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if itemRepo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order opener required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, itemRepo: itemRepo, orders: orders, tx: tx, events: events, notify: notify}, nil
}

// Create opens a negotiation. The first bid always lands on the seller's desk.
func (s *service) Create(ctx context.Context, actor types.Actor, itemID uuid.UUID, req CreateOfferRequest) (*OfferSummary, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if req.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer amount must be positive")
	}

	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot make an offer on your own listing")
	}
	if item.Status != enums.ItemStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item is no longer available")
	}

	offer := &models.Offer{
		ItemID:         item.ID,
		BuyerID:        actor.UserID,
		SellerID:       item.SellerID,
		Status:         enums.OfferStatusPendingSellerReview,
		CurrentBidKobo: req.AmountKobo,
		LastOfferBy:    enums.OfferPartyBuyer,
		RoundCount:     1,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).Create(ctx, offer)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_offers_open_per_buyer_item") {
				return pkgerrors.New(pkgerrors.CodeConflict, "an open offer for this item already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}
		offer = created
		return s.emit(ctx, tx, enums.EventOfferCreated, actor, offer)
	})
	if err != nil {
		return nil, err
	}

	s.notifyParty(ctx, offer.SellerID, "New offer received",
		fmt.Sprintf("You received an offer of %d kobo on %q.", offer.CurrentBidKobo, item.Title), offer.ID)

	summary := FromModel(offer)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*OfferSummary, error) {
	offer, err := s.loadOffer(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if _, err := partyOf(actor, offer); err != nil && !actor.IsAdmin() {
		return nil, err
	}
	summary := FromModel(offer)
	return &summary, nil
}

func (s *service) ListMine(ctx context.Context, actor types.Actor, params pagination.Params) ([]OfferSummary, string, error) {
	if actor.UserID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, next, err := s.repo.ListByBuyer(ctx, actor.UserID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	out := make([]OfferSummary, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, next, nil
}

// Counter flips the turn to the other party with a new bid. Item
// availability is deliberately not re-checked here; it is enforced when the
// offer is accepted.
func (s *service) Counter(ctx context.Context, actor types.Actor, id uuid.UUID, req CounterOfferRequest) (*OfferSummary, error) {
	if req.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counter amount must be positive")
	}

	var updated *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, party, err := s.loadForTurn(ctx, repo, actor, id)
		if err != nil {
			return err
		}

		next := enums.OfferStatusPendingSellerReview
		if party == enums.OfferPartySeller {
			next = enums.OfferStatusPendingBuyerReview
		}
		ok, err := repo.UpdateIf(ctx, offer.ID, offer.Status, map[string]any{
			"status":           next,
			"current_bid_kobo": req.AmountKobo,
			"last_offer_by":    party,
			"round_count":      gorm.Expr("round_count + 1"),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counter offer")
		}
		if !ok {
			return pkgerrors.StateConflict("offer", offer.Status.String(), "counter")
		}

		offer.Status = next
		offer.CurrentBidKobo = req.AmountKobo
		offer.LastOfferBy = party
		offer.RoundCount++
		updated = offer
		return s.emit(ctx, tx, enums.EventOfferCountered, actor, offer)
	})
	if err != nil {
		return nil, err
	}

	s.notifyParty(ctx, counterpartID(updated, updated.LastOfferBy), "Counter-offer received",
		fmt.Sprintf("The other party countered with %d kobo.", updated.CurrentBidKobo), updated.ID)

	summary := FromModel(updated)
	return &summary, nil
}

// Accept closes the negotiation at the standing bid, reserves the item, and
// opens a pending-payment order in the same transaction.
func (s *service) Accept(ctx context.Context, actor types.Actor, id uuid.UUID) (*AcceptResult, error) {
	var (
		accepted *models.Offer
		order    *models.Order
		swept    []models.Offer
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, _, err := s.loadForTurn(ctx, repo, actor, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := repo.UpdateIf(ctx, offer.ID, offer.Status, map[string]any{
			"status":            enums.OfferStatusAccepted,
			"accepted_bid_kobo": offer.CurrentBidKobo,
			"closed_at":         now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if !ok {
			return pkgerrors.StateConflict("offer", offer.Status.String(), "accept")
		}

		reserved, err := s.itemRepo.WithTx(tx).UpdateStatusIf(ctx, offer.ItemID, enums.ItemStatusAvailable, enums.ItemStatusPendingPayment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve item")
		}
		if !reserved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is no longer available")
		}

		swept, err = repo.CloseOpenForItem(ctx, offer.ItemID, offer.ID, enums.OfferStatusRejectedBySeller, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close competing offers")
		}

		offer.Status = enums.OfferStatusAccepted
		bid := offer.CurrentBidKobo
		offer.AcceptedBidKobo = &bid
		offer.ClosedAt = &now

		order, err = s.orders.OpenFromOffer(ctx, tx, offer)
		if err != nil {
			return err
		}
		accepted = offer
		return s.emit(ctx, tx, enums.EventOfferAccepted, actor, offer)
	})
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("/orders/%s", order.ID)
	notes := []notifications.Note{
		{
			UserID:  accepted.BuyerID,
			Type:    enums.NotificationTypeOfferAlert,
			Title:   "Offer accepted",
			Message: fmt.Sprintf("Your offer was accepted at %d kobo. Complete payment to secure the item.", accepted.CurrentBidKobo),
			Link:    &link,
		},
		{
			UserID:  accepted.SellerID,
			Type:    enums.NotificationTypeOfferAlert,
			Title:   "Offer accepted",
			Message: fmt.Sprintf("The offer closed at %d kobo. The buyer has been asked to pay.", accepted.CurrentBidKobo),
			Link:    &link,
		},
	}
	for i := range swept {
		sweptLink := fmt.Sprintf("/offers/%s", swept[i].ID)
		notes = append(notes, notifications.Note{
			UserID:  swept[i].BuyerID,
			Type:    enums.NotificationTypeOfferAlert,
			Title:   "Offer declined",
			Message: "The seller accepted another offer on this item.",
			Link:    &sweptLink,
		})
	}
	_ = s.notify.NotifyAll(ctx, notes)

	return &AcceptResult{
		Offer:       FromModel(accepted),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

// Reject closes the negotiation, recording which side walked away.
func (s *service) Reject(ctx context.Context, actor types.Actor, id uuid.UUID) (*OfferSummary, error) {
	var rejected *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, party, err := s.loadForTurn(ctx, repo, actor, id)
		if err != nil {
			return err
		}

		terminal := enums.OfferStatusRejectedByBuyer
		if party == enums.OfferPartySeller {
			terminal = enums.OfferStatusRejectedBySeller
		}
		now := time.Now().UTC()
		ok, err := repo.UpdateIf(ctx, offer.ID, offer.Status, map[string]any{
			"status":    terminal,
			"closed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject offer")
		}
		if !ok {
			return pkgerrors.StateConflict("offer", offer.Status.String(), "reject")
		}

		offer.Status = terminal
		offer.ClosedAt = &now
		rejected = offer
		return s.emit(ctx, tx, enums.EventOfferRejected, actor, offer)
	})
	if err != nil {
		return nil, err
	}

	s.notifyParty(ctx, counterpartID(rejected, partyFromStatus(rejected.Status)), "Offer declined",
		"Your offer was declined.", rejected.ID)

	summary := FromModel(rejected)
	return &summary, nil
}

// loadForTurn fetches the offer and verifies the actor is a participant,
// the offer is still open, and it is the actor's turn to respond.
func (s *service) loadForTurn(ctx context.Context, repo Repository, actor types.Actor, id uuid.UUID) (*models.Offer, enums.OfferParty, error) {
	offer, err := s.loadOffer(ctx, repo, id)
	if err != nil {
		return nil, "", err
	}
	party, err := partyOf(actor, offer)
	if err != nil {
		return nil, "", err
	}
	if offer.Status.IsTerminal() {
		return nil, "", pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("offer already closed as %s", offer.Status))
	}
	if party == offer.LastOfferBy {
		return nil, "", pkgerrors.New(pkgerrors.CodeConflict, "waiting for the other party to respond")
	}
	return offer, party, nil
}

func (s *service) loadOffer(ctx context.Context, repo Repository, id uuid.UUID) (*models.Offer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id required")
	}
	offer, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("offer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

func (s *service) loadItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor types.Actor, offer *models.Offer) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		Data: map[string]any{
			"itemId":         offer.ItemID,
			"buyerId":        offer.BuyerID,
			"sellerId":       offer.SellerID,
			"status":         offer.Status,
			"currentBidKobo": offer.CurrentBidKobo,
			"roundCount":     offer.RoundCount,
		},
		Version: 1,
	})
}

func (s *service) notifyParty(ctx context.Context, userID uuid.UUID, title, message string, offerID uuid.UUID) {
	link := fmt.Sprintf("/offers/%s", offerID)
	_ = s.notify.Notify(ctx, notifications.Note{
		UserID:  userID,
		Type:    enums.NotificationTypeOfferAlert,
		Title:   title,
		Message: message,
		Link:    &link,
	})
}

func partyOf(actor types.Actor, offer *models.Offer) (enums.OfferParty, error) {
	switch actor.UserID {
	case offer.BuyerID:
		return enums.OfferPartyBuyer, nil
	case offer.SellerID:
		return enums.OfferPartySeller, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "offer does not involve user")
	}
}

// partyFromStatus recovers which side closed a rejected offer.
func partyFromStatus(status enums.OfferStatus) enums.OfferParty {
	if status == enums.OfferStatusRejectedBySeller {
		return enums.OfferPartySeller
	}
	return enums.OfferPartyBuyer
}

// counterpartID returns the participant opposite the given party.
func counterpartID(offer *models.Offer, acting enums.OfferParty) uuid.UUID {
	if acting == enums.OfferPartySeller {
		return offer.BuyerID
	}
	return offer.SellerID
}
