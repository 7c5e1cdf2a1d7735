package reservations

const (
	TopicLifecycle = "reservation.lifecycle"
)

// PartitionKey keeps every event of one reservation on the same partition.
func PartitionKey(reservationID string) []byte { return []byte(reservationID) }
