package bargain

type RoomStatus string

const (
	StatusActive   RoomStatus = "active"
	StatusAccepted RoomStatus = "accepted"
	StatusRejected RoomStatus = "rejected"
	StatusClosed   RoomStatus = "closed" // expiry
)

var validNext = map[RoomStatus]map[RoomStatus]bool{
	StatusActive:   {StatusAccepted: true, StatusRejected: true, StatusClosed: true},
	StatusAccepted: {},
	StatusRejected: {},
	StatusClosed:   {},
}

func CanTransition(from, to RoomStatus) bool {
	return validNext[from][to]
}

func (s RoomStatus) Terminal() bool { return s != StatusActive }
