package application

import "fmt"

// Realtime event discriminators. The mobile and web clients listen for
// these names; changing them is a breaking client change.
const (
	EventNewReservation = "new-reservation"
	EventStatusUpdate   = "status-update"
)

// Channel naming convention shared with subscribed clients.
func UserChannel(userID int64) string         { return fmt.Sprintf("user.%d", userID) }
func PharmacyChannel(pharmacyID int64) string { return fmt.Sprintf("pharmacy.%d", pharmacyID) }
