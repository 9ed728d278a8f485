package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
	"github.com/ariefcatur/go-bargain-market.git/internal/inventory"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

// errStatus maps domain sentinels ke kode HTTP. Error tak dikenal = 500.
func errStatus(err error) int {
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.Is(err, bargain.ErrNotFound), errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bargain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bargain.ErrInvalidArgument),
		errors.Is(err, bargain.ErrInvalidOwner),
		errors.Is(err, inventory.ErrNegativeQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, bargain.ErrRoomNotActive):
		return http.StatusConflict
	case errors.Is(err, bargain.ErrExpired):
		return http.StatusGone
	case errors.As(err, &insufficient),
		errors.Is(err, inventory.ErrStaleLot),
		errors.Is(err, inventory.ErrDuplicateOrder):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
