package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/skillhive/skillhive/api/background"
	"github.com/skillhive/skillhive/api/middleware"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/config"
	"github.com/skillhive/skillhive/core/auth"
	"github.com/skillhive/skillhive/core/cart"
	"github.com/skillhive/skillhive/core/course"
	"github.com/skillhive/skillhive/core/enrollment"
	"github.com/skillhive/skillhive/core/lesson"
	"github.com/skillhive/skillhive/core/payment"
	"github.com/skillhive/skillhive/core/token"
	"github.com/skillhive/skillhive/core/user"
	"github.com/skillhive/skillhive/media"
	"github.com/skillhive/skillhive/rate"
)

type APIConfig struct {
	CorsOrigin         string
	Log                logrus.FieldLogger
	DB                 *sqlx.DB
	Session            *scs.SessionManager
	Mailer             token.Mailer
	TokenTimeout       time.Duration
	Background         *background.Background
	Gateway            payment.Gateway
	RazorpayCfg        config.Razorpay
	Uploader           media.Uploader
	Providers          map[string]auth.Provider
	LoginRedirectURL   string
	ActivationRequired bool
	AuthLimiter        *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	instructor := auth.Instructor(cfg.Session)
	admin := auth.Admin(cfg.Session)

	var limited web.Middleware
	if cfg.AuthLimiter != nil {
		limited = middleware.RateLimit(cfg.AuthLimiter)
	}

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.Mailer, cfg.TokenTimeout, cfg.Background, cfg.ActivationRequired), limited)
	a.Handle(http.MethodPost, "/auth/verify", auth.HandleVerify(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id:[0-9]+}", user.HandleShow(cfg.DB), authen)

	a.Handle(http.MethodGet, "/course", course.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/course/recommended", course.HandleRecommended(cfg.DB))
	a.Handle(http.MethodGet, "/course/category", course.HandleCategories(cfg.DB))
	a.Handle(http.MethodGet, "/course/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/course/my", course.HandleListMine(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/course/analytics", course.HandleAnalytics(cfg.DB), instructor)
	a.Handle(http.MethodPost, "/course", course.HandleCreate(cfg.DB, cfg.Uploader), instructor)
	a.Handle(http.MethodGet, "/course/{id:[0-9]+}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodPut, "/course/{id:[0-9]+}", course.HandleUpdate(cfg.DB), instructor)
	a.Handle(http.MethodDelete, "/course/{id:[0-9]+}", course.HandleDelete(cfg.DB), instructor)
	a.Handle(http.MethodPatch, "/course/approve/{id:[0-9]+}", course.HandleApprove(cfg.DB), admin)

	a.Handle(http.MethodGet, "/course/{course_id:[0-9]+}/sections", lesson.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodPost, "/course/{course_id:[0-9]+}/sections", lesson.HandleCreateSection(cfg.DB), instructor)
	a.Handle(http.MethodPut, "/course/{course_id:[0-9]+}/sections/reorder", lesson.HandleReorderSections(cfg.DB), instructor)
	a.Handle(http.MethodPost, "/course/sections/{section_id:[0-9]+}/lessons", lesson.HandleCreateLesson(cfg.DB, cfg.Uploader), instructor)
	a.Handle(http.MethodPut, "/course/sections/{section_id:[0-9]+}/lessons/reorder", lesson.HandleReorderLessons(cfg.DB), instructor)

	a.Handle(http.MethodGet, "/course/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/course/cart", cart.HandleDelete(cfg.DB), authen)
	a.Handle(http.MethodPost, "/course/cart/items", cart.HandleCreateItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/course/cart/items/{course_id:[0-9]+}", cart.HandleDeleteItem(cfg.DB), authen)

	a.Handle(http.MethodPost, "/course/enrollments", enrollment.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/course/enrollments/current", enrollment.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodPost, "/course/payment/create-order", payment.HandleCreateOrder(cfg.DB, cfg.Gateway, cfg.RazorpayCfg), authen)
	a.Handle(http.MethodPost, "/course/payment/verify-enroll", payment.HandleVerify(cfg.DB, cfg.Log, cfg.RazorpayCfg), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
