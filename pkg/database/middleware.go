package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WithScope creates middleware that acquires a pooled connection for the
// request and stores it in context. The connection is released after the
// handler returns.
func WithScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.Acquire(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
}
