package controllers

import (
	"net/http"

	"github.com/sudhir1041/nursery-orders/api/middleware"
	"github.com/sudhir1041/nursery-orders/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// OperatorPing echoes the operator the dashboard API resolved for the caller.
func OperatorPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"scope":    "operator",
			"status":   "ok",
			"operator": middleware.OperatorFromContext(r.Context()),
		})
	}
}
