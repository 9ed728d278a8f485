package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache snapshot room bargain: bargain:room:{room_id} -> JSON ringkas
	KeyRoomSnapshot = "bargain:room:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLRoomSnapshot = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
