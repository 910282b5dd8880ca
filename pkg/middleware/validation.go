// pkg/middleware/validation.go

package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// MaxBodySize - предел тела запроса.
const MaxBodySize = 1 << 20 // 1 MB

// ErrorResponse - формат ошибок, отдаваемых middleware.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ValidateRequest проверяет Content-Type для POST/PUT и ограничивает размер тела.
// Пустое тело пропускается: его разбирает обработчик.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				WriteError(w, http.StatusBadRequest, "Invalid Content-Type, expected application/json")
				return
			}
		}

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		}

		next.ServeHTTP(w, r)
	})
}

// WriteError отдаёт {"message": ...} с указанным статусом.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}
