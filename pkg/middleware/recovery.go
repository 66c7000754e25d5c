package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"device-entitlement-backend/pkg/config"
	"device-entitlement-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Recovery turns panics into 500 responses. Development responses carry the
// panic value; production responses stay generic.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	log := logrus.WithField("component", "recovery")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"panic": rec,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					}).Error("panic recovered")

					if cfg.IsDevelopment() {
						utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
							"INTERNAL_SERVER_ERROR",
							fmt.Sprintf("Internal server error: %v", rec), nil)
						return
					}
					utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
