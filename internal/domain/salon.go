package domain

// Barber is a stylist employed by a salon.
type Barber struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

// Salon is a single directory entry.
//
// Coordinate is nil when the directory has no geocoded position for the
// entry. DistanceKm is populated only on entries returned by a
// location-qualified query; consumers must not assume it is present.
type Salon struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city,omitempty"`
	Country     string      `json:"country,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Email       string      `json:"email,omitempty"`
	Description string      `json:"description,omitempty"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
	DistanceKm  *float64    `json:"distance,omitempty"`
	Barbers     []Barber    `json:"barbers,omitempty"`
}
