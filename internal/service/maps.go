package service

import (
	"fmt"
	"net/url"
	"strconv"

	"campus_parking/internal/domain"
)

const (
	directionsBaseURL = "https://www.google.com/maps/dir/"
	staticMapBaseURL  = "https://maps.googleapis.com/maps/api/staticmap"

	staticMapZoom = 16
	staticMapSize = "800x400"
)

// MapProvider builds Google Maps links for lots. It only formats URLs and never calls out.
type MapProvider struct {
	apiKey string
	center domain.Coordinate
}

func NewMapProvider(apiKey string, center domain.Coordinate) *MapProvider {
	return &MapProvider{apiKey: apiKey, center: center}
}

func formatCoord(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// DirectionsURL links to turn-by-turn directions ending at c.
func (m *MapProvider) DirectionsURL(c domain.Coordinate) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", formatCoord(c))
	return directionsBaseURL + "?" + q.Encode()
}

// StaticMapURL renders every lot as a marker coloured by availability, centred on the campus.
func (m *MapProvider) StaticMapURL(statuses []domain.LotStatus) string {
	q := url.Values{}
	q.Set("center", formatCoord(m.center))
	q.Set("zoom", strconv.Itoa(staticMapZoom))
	q.Set("size", staticMapSize)
	q.Set("maptype", "roadmap")
	for _, st := range statuses {
		q.Add("markers", fmt.Sprintf("color:%s|%s", st.Marker, formatCoord(st.Lot.Coordinate)))
	}
	if m.apiKey != "" {
		q.Set("key", m.apiKey)
	}
	return staticMapBaseURL + "?" + q.Encode()
}
