package domain

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Lot is a configured parking area. Lots are loaded once at startup and never mutated.
type Lot struct {
	ID          string     `json:"id" yaml:"id"`
	Capacity    int        `json:"capacity" yaml:"capacity"`
	Coordinate  Coordinate `json:"coordinate" yaml:"coordinate"`
	Rate        string     `json:"rate,omitempty" yaml:"rate"`
	Location    string     `json:"location,omitempty" yaml:"location"`
	Restriction string     `json:"restriction,omitempty" yaml:"restriction"`
	FeedPath    string     `json:"-" yaml:"feed"` // camera frame directory, optional
}

// HasFeed reports whether frames can be pulled for this lot.
func (l Lot) HasFeed() bool {
	return l.FeedPath != ""
}
