package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/smilequote-backend/api/controllers"
	"github.com/angelmondragon/smilequote-backend/api/middleware"
	"github.com/angelmondragon/smilequote-backend/internal/auth"
	"github.com/angelmondragon/smilequote-backend/internal/catalog"
	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/internal/quotes"
	"github.com/angelmondragon/smilequote-backend/pkg/auth/session"
	"github.com/angelmondragon/smilequote-backend/pkg/config"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/redis"
)

// RateLimiter is the fixed-window counter surface of the redis client.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Params carries everything the HTTP surface depends on. Nil stores disable
// the middleware that needs them.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	RateLimiter RateLimiter
	Sessions    session.AccessSessionChecker
	Gatherer    prometheus.Gatherer

	Auth       auth.Service
	Quotes     quotes.Service
	Promotions promotions.Service
	Catalog    catalog.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.RateLimit.Window, cfg.RateLimit.LoginIPLimit, cfg.RateLimit.LoginEmailLimit, 0)
	previewPolicy := middleware.NewRateLimitPolicy("promo_preview", cfg.RateLimit.Window, cfg.RateLimit.PromoUserLimit, 0, 0)
	applyPolicy := middleware.NewRateLimitPolicy("promo_apply", cfg.RateLimit.Window, 0, 0, cfg.RateLimit.PromoUserLimit)

	// Idempotency is attached per route so chi has resolved the full pattern.
	idem := middleware.Idempotency(p.Idempotency, logg)
	promoLimit := middleware.RateLimit(applyPolicy, p.RateLimiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, p.RateLimiter, logg)).Post("/auth/login", controllers.AuthLogin(p.Auth, logg))

		r.Get("/packages", controllers.CatalogList(p.Catalog, enums.PackageKindPackage, logg))
		r.Get("/packages/{packageId}", controllers.CatalogGet(p.Catalog, logg))
		r.Get("/special-offers", controllers.CatalogList(p.Catalog, enums.PackageKindSpecialOffer, logg))
		r.With(middleware.RateLimit(previewPolicy, p.RateLimiter, logg)).Post("/promos/validate", controllers.PromoValidate(p.Promotions, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.With(idem, promoLimit).Post("/api/apply-code", controllers.ApplyCode(p.Quotes, logg))
		r.With(idem).Post("/api/remove-code", controllers.RemoveCode(p.Quotes, logg))

		r.Post("/api/v1/auth/logout", controllers.AuthLogout(p.Auth, logg))

		r.Route("/api/v1/quotes", func(r chi.Router) {
			r.With(idem).Post("/", controllers.QuoteCreate(p.Quotes, logg))
			r.Get("/", controllers.QuoteList(p.Quotes, logg))

			r.Route("/{quoteId}", func(r chi.Router) {
				r.Get("/", controllers.QuoteGet(p.Quotes, logg))
				r.Get("/totals", controllers.QuoteCheckTotals(p.Quotes, logg))
				r.Post("/revalidate", controllers.QuoteRevalidate(p.Quotes, logg))

				r.Post("/lines", controllers.QuoteAddLine(p.Quotes, logg))
				r.Patch("/lines/{lineId}", controllers.QuoteUpdateLine(p.Quotes, logg))
				r.Delete("/lines/{lineId}", controllers.QuoteRemoveLine(p.Quotes, logg))

				r.With(idem, promoLimit).Post("/promo-code", controllers.QuoteApplyCode(p.Quotes, logg))
				r.With(idem).Delete("/promo-code", controllers.QuoteRemoveCode(p.Quotes, logg))

				r.With(idem).Post("/packages/{packageId}", controllers.QuoteInjectPackage(p.Quotes, logg))
				r.Delete("/packages/{packageId}", controllers.QuoteRemovePackage(p.Quotes, logg))

				r.With(idem).Post("/submit", controllers.QuoteSubmit(p.Quotes, logg))
				r.With(idem).Post("/status", controllers.QuoteTransitionStatus(p.Quotes, logg))
			})
		})

		r.Route("/api/v1/admin/promotions", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Get("/", controllers.AdminPromotionList(p.Promotions, logg))
			r.With(idem).Post("/", controllers.AdminPromotionCreate(p.Promotions, logg))
			r.Get("/{promotionId}", controllers.AdminPromotionGet(p.Promotions, logg))
			r.Patch("/{promotionId}", controllers.AdminPromotionUpdate(p.Promotions, logg))
			r.Delete("/{promotionId}", controllers.AdminPromotionDelete(p.Promotions, logg))
		})
	})

	return r
}
