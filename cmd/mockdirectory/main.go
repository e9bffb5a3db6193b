// Command mockdirectory serves a deterministic salon catalog over the
// directory wire contract. It stands in for the real catalog service during
// local development and discoverycheck runs; the same seed always produces
// the same catalog, so test assertions stay stable.
//
// Usage:
//
//	go run ./cmd/mockdirectory -addr :4000 -count 25 -seed 1
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"salon-discovery/internal/domain"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	count := flag.Int("count", 25, "number of salons to generate")
	seed := flag.Int64("seed", 1, "generation seed")
	out := flag.String("out", "", "optional path to also dump the catalog as a JSON fixture")
	flag.Parse()

	if err := run(*addr, *count, *seed, *out); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, count int, seed int64, out string) error {
	catalog := generate(count, seed)
	printStats(catalog)

	if out != "" {
		if err := writeFixture(out, catalog); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote fixture: %s", out)
	}

	srv := &server{catalog: catalog}
	log.Printf("mock directory listening on %s", addr)
	return http.ListenAndServe(addr, srv.routes())
}

// ── Catalog generation ──

type cityDef struct {
	name    string
	country string
	lat     float64
	lon     float64
}

var cities = []cityDef{
	{name: "Helsinki", country: "Finland", lat: 60.1699, lon: 24.9384},
	{name: "Espoo", country: "Finland", lat: 60.2055, lon: 24.6559},
	{name: "Vantaa", country: "Finland", lat: 60.2934, lon: 25.0378},
	{name: "Tampere", country: "Finland", lat: 61.4978, lon: 23.7610},
	{name: "Turku", country: "Finland", lat: 60.4518, lon: 22.2666},
}

var (
	namePrefixes = []string{"Chop", "Fade", "Clipper", "Razor", "Velvet", "Crown", "Shear", "Northside"}
	nameSuffixes = []string{"Shop", "Studio", "Lounge", "Barbers", "Room", "Parlor"}
	streets      = []string{"Mannerheimintie", "Aleksanterinkatu", "Hämeenkatu", "Yliopistonkatu", "Iso Roobertinkatu"}
	barberNames  = []string{"Aino", "Eero", "Helmi", "Juho", "Kaisa", "Lauri", "Noora", "Otso", "Pihla", "Väinö"}
	specialties  = []string{"fades", "beard trims", "classic cuts", "coloring", "long hair"}
)

type mockSalon struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	Country     string       `json:"country"`
	Phone       string       `json:"phone"`
	Email       string       `json:"email"`
	Description string       `json:"description"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	Distance    *float64     `json:"distance,omitempty"`
	Barbers     []mockBarber `json:"barbers,omitempty"`
}

type mockBarber struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func generate(count int, seed int64) []mockSalon {
	rng := rand.New(rand.NewSource(seed))

	salons := make([]mockSalon, 0, count)
	barberID := 1
	for i := 1; i <= count; i++ {
		city := cities[rng.Intn(len(cities))]
		name := fmt.Sprintf("%s %s", namePrefixes[rng.Intn(len(namePrefixes))], nameSuffixes[rng.Intn(len(nameSuffixes))])
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "."))

		s := mockSalon{
			ID:          i,
			Name:        name,
			Address:     fmt.Sprintf("%s %d", streets[rng.Intn(len(streets))], 1+rng.Intn(80)),
			City:        city.name,
			Country:     city.country,
			Phone:       fmt.Sprintf("+358 40 %07d", rng.Intn(10000000)),
			Email:       fmt.Sprintf("%s@example.com", slug),
			Description: fmt.Sprintf("%s in central %s.", name, city.name),
		}

		// Leave every seventh entry without a position: the real catalog has
		// entries that never got geocoded, and consumers must survive them.
		if i%7 != 0 {
			lat := city.lat + (rng.Float64()-0.5)*0.04
			lon := city.lon + (rng.Float64()-0.5)*0.04
			s.Latitude = &lat
			s.Longitude = &lon
		}

		for b := 0; b < 1+rng.Intn(3); b++ {
			s.Barbers = append(s.Barbers, mockBarber{
				ID:        barberID,
				Name:      barberNames[rng.Intn(len(barberNames))],
				Specialty: specialties[rng.Intn(len(specialties))],
			})
			barberID++
		}

		salons = append(salons, s)
	}
	return salons
}

func printStats(catalog []mockSalon) {
	perCity := map[string]int{}
	geocoded := 0
	barbers := 0
	for _, s := range catalog {
		perCity[s.City]++
		if s.Latitude != nil {
			geocoded++
		}
		barbers += len(s.Barbers)
	}

	log.Printf("generated %d salons (%d geocoded, %d barbers)", len(catalog), geocoded, barbers)
	names := make([]string, 0, len(perCity))
	for c := range perCity {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		log.Printf("  %s: %d", c, perCity[c])
	}
}

func writeFixture(path string, catalog []mockSalon) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// ── HTTP surface ──

type server struct {
	catalog []mockSalon
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/salons/all", s.handleAll)
	mux.HandleFunc("POST /api/salons/nearby", s.handleNearby)
	mux.HandleFunc("GET /api/salons/by_city", s.handleByCity)
	mux.HandleFunc("GET /api/salons/{id}", s.handleDetail)
	return mux
}

type listResponse struct {
	Salons       []mockSalon `json:"salons"`
	TotalCount   int         `json:"total_count"`
	SearchRadius float64     `json:"search_radius,omitempty"`
}

func (s *server) handleAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{
		Salons:     listing(s.catalog),
		TotalCount: len(s.catalog),
	})
}

func (s *server) handleNearby(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Radius    float64 `json:"radius"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	at := domain.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if !at.Valid() {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if req.Radius <= 0 {
		writeError(w, http.StatusBadRequest, "radius must be positive")
		return
	}

	nearby := []mockSalon{}
	for _, c := range listing(s.catalog) {
		if c.Latitude == nil {
			continue
		}
		d := domain.DistanceKm(at, domain.Coordinate{Latitude: *c.Latitude, Longitude: *c.Longitude})
		if d > req.Radius {
			continue
		}
		c.Distance = &d
		nearby = append(nearby, c)
	}
	sort.Slice(nearby, func(i, j int) bool { return *nearby[i].Distance < *nearby[j].Distance })

	writeJSON(w, http.StatusOK, listResponse{
		Salons:       nearby,
		TotalCount:   len(nearby),
		SearchRadius: req.Radius,
	})
}

func (s *server) handleByCity(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	country := r.URL.Query().Get("country")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}

	matched := []mockSalon{}
	for _, c := range listing(s.catalog) {
		if !strings.EqualFold(c.City, city) {
			continue
		}
		if country != "" && !strings.EqualFold(c.Country, country) {
			continue
		}
		matched = append(matched, c)
	}

	writeJSON(w, http.StatusOK, listResponse{
		Salons:     matched,
		TotalCount: len(matched),
	})
}

func (s *server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid salon id")
		return
	}
	for _, c := range s.catalog {
		if c.ID == id {
			writeJSON(w, http.StatusOK, struct {
				Salon mockSalon `json:"salon"`
			}{Salon: c})
			return
		}
	}
	writeError(w, http.StatusNotFound, "salon not found")
}

// listing copies the catalog without barber rosters; only the detail
// endpoint carries them, matching the real catalog service.
func listing(catalog []mockSalon) []mockSalon {
	out := make([]mockSalon, len(catalog))
	for i, c := range catalog {
		c.Barbers = nil
		out[i] = c
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
