package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// Routes wires the /v1 API. Nil rate limits are skipped.
type Routes struct {
	Auth    *AuthHandler
	Gateway *GatewayHandler
	Events  http.Handler

	RequireAuth Middleware
	SignInLimit Middleware
	VerifyLimit Middleware
	LookupLimit Middleware
}

func (rt Routes) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			useIfSet(r, rt.SignInLimit)
			r.Post("/auth/signin", rt.Auth.SignIn)
			r.Post("/auth/signup", rt.Auth.SignUp)
		})

		r.Group(func(r chi.Router) {
			useIfSet(r, rt.VerifyLimit)
			r.Post("/linking-codes/verify", rt.Gateway.VerifyLinkingCode)
		})

		// polled by linked devices on every cold start
		r.Group(func(r chi.Router) {
			useIfSet(r, rt.LookupLimit)
			r.Get("/linked-children/{id}", rt.Gateway.GetLinkedChild)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.RequireAuth)

			r.Get("/auth/session", rt.Auth.GetSession)
			r.Post("/auth/signout", rt.Auth.SignOut)
			r.Get("/auth/events", rt.Events.ServeHTTP)

			r.Get("/profiles/{id}", rt.Gateway.GetProfile)
			r.Get("/children", rt.Gateway.ListChildren)
			r.Post("/children", rt.Gateway.AddChild)
			r.Get("/children/{id}", rt.Gateway.GetChild)
			r.Post("/children/{id}/linking-code", rt.Gateway.GenerateLinkingCode)
		})
	})
}

func useIfSet(r chi.Router, mw Middleware) {
	if mw != nil {
		r.Use(mw)
	}
}
