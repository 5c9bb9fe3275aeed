package domain

const NotificationOccupancyUpdate = "occupancy_update"

// OccupancyNotification is pushed to websocket clients.
type OccupancyNotification struct {
	Type      string         `json:"type"`
	State     OccupancyState `json:"state"`
	Available int            `json:"available"`
	Marker    MarkerColor    `json:"marker"`
}

func NewOccupancyNotification(state OccupancyState) OccupancyNotification {
	return OccupancyNotification{
		Type:      NotificationOccupancyUpdate,
		State:     state,
		Available: state.Available(),
		Marker:    MarkerFor(state.Available()),
	}
}
