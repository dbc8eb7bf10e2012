package booking

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AkZcH/metro-flow-control-system/common/ratelimiter"
	"github.com/AkZcH/metro-flow-control-system/common/routes"
	"github.com/AkZcH/metro-flow-control-system/config"
	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
	"github.com/AkZcH/metro-flow-control-system/internal/notify"
	"github.com/AkZcH/metro-flow-control-system/internal/reservation"
	"github.com/AkZcH/metro-flow-control-system/internal/store"
)

// Per-user booking throttle, applied only when Redis is configured.
const (
	rateLimitWindow   = time.Minute
	rateLimitRequests = 10
)

type Handler struct {
	config      *config.Config
	coordinator *reservation.Coordinator
	ledger      ledger.Ledger
	tickets     store.TicketStore
	hub         *notify.Hub
	RateLimiter *ratelimiter.RedisRateLimiter
}

func NewHandler(
	config *config.Config,
	coordinator *reservation.Coordinator,
	capacityLedger ledger.Ledger,
	tickets store.TicketStore,
	hub *notify.Hub,
	rateLimiter *ratelimiter.RedisRateLimiter,
) *Handler {
	return &Handler{
		config:      config,
		coordinator: coordinator,
		ledger:      capacityLedger,
		tickets:     tickets,
		hub:         hub,
		RateLimiter: rateLimiter,
	}
}

func (h *Handler) Routes() *chi.Mux {
	router := routes.DefaultRouter()

	router.Group(func(r chi.Router) {
		r.Post("/book", h.BookTicket)
		r.Get("/fare-estimate", h.GetFareEstimate)
		r.Post("/cancel/{ticketId}", h.CancelTicket)
		r.Get("/tickets/{ticketId}", h.GetTicketById)
		r.Get("/users/{userId}/tickets", h.GetUserTickets)
		r.Get("/capacity", h.GetCapacity)
		r.Get("/events/bookings/{userId}", h.StreamBookingEvents)
		r.Get("/events/capacity", h.StreamCapacityEvents)
	})

	return router
}
