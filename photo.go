package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/s2"
)

// Provenance values for the optional photo fields. Fields pulled out of
// EXIF are "exif", caller-set positions are "manual", and video capture
// dates taken from the file's modification time are "mtime".
const (
	sourceExif   = "exif"
	sourceManual = "manual"
	sourceMtime  = "mtime"
)

const earthRadiusKm = 6371.01

var errPhotoNotFound = errors.New("no such photo")

// Photo is the persisted record for one upload. Latitude and longitude
// are set together or not at all; bearing stays in [0, 360).
type Photo struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Uploaded    time.Time `json:"uploaded"`

	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Bearing   *float64   `json:"bearing,omitempty"`
	Taken     *time.Time `json:"taken,omitempty"`

	LocationSource string `json:"location_source,omitempty"`
	BearingSource  string `json:"bearing_source,omitempty"`
	TakenSource    string `json:"taken_source,omitempty"`

	// Derived, recomputed on load and on every position change.
	Cardinal string `json:"cardinal,omitempty"`
	S2Cell   string `json:"s2_cell,omitempty"`
}

func (p *Photo) refreshDerived() {
	p.Cardinal = ""
	p.S2Cell = ""
	if p.Bearing != nil {
		p.Cardinal = cardinalLabel(*p.Bearing)
	}
	if p.Latitude != nil && p.Longitude != nil {
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(*p.Latitude, *p.Longitude))
		p.S2Cell = cell.ToToken()
	}
}

func (p *Photo) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(*p.Latitude, *p.Longitude)
}

// photoStore keeps photo records as one JSON file per photo under its
// directory, with an in-memory index for lookups.
type photoStore struct {
	dir string

	mu     sync.RWMutex
	byID   map[string]*Photo
	byFile map[string]string
}

func newPhotoStore(dir string) (*photoStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	store := &photoStore{
		dir:    dir,
		byID:   make(map[string]*Photo),
		byFile: make(map[string]string),
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var p Photo
		if err := json.Unmarshal(raw, &p); err != nil {
			fmt.Printf("Skipping unreadable record %s: %v\n", entry.Name(), err)
			continue
		}
		p.refreshDerived()
		store.byID[p.ID] = &p
		store.byFile[p.Filename] = p.ID
	}
	return store, nil
}

func (s *photoStore) add(p Photo) error {
	if err := s.write(&p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = &p
	s.byFile[p.Filename] = p.ID
	return nil
}

func (s *photoStore) write(p *Photo) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, p.ID+".json"), raw, 0644)
}

func (s *photoStore) get(id string) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Photo{}, false
	}
	return *p, true
}

func (s *photoStore) byFilename(name string) (Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byFile[name]
	if !ok {
		return Photo{}, false
	}
	return *s.byID[id], true
}

// list returns all photos, newest upload first.
func (s *photoStore) list() []Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Photo, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Uploaded.Equal(out[j].Uploaded) {
			return out[i].Uploaded.After(out[j].Uploaded)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// near returns positioned photos within km of the given point.
func (s *photoStore) near(lat, lng, km float64) []Photo {
	center := s2.LatLngFromDegrees(lat, lng)
	out := []Photo{}
	for _, p := range s.list() {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		if distanceKm(center, p.latLng()) <= km {
			out = append(out, p)
		}
	}
	return out
}

func distanceKm(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusKm
}

func (s *photoStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// positionUpdate is the payload for manually placing a photo. A bearing
// may be given outright or computed from a target the camera was facing.
type positionUpdate struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Bearing   *float64 `json:"bearing,omitempty"`
	TargetLat *float64 `json:"target_lat,omitempty"`
	TargetLng *float64 `json:"target_lng,omitempty"`
}

func (u positionUpdate) validate() error {
	if u.Lat < -90 || u.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", u.Lat)
	}
	if u.Lng < -180 || u.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", u.Lng)
	}
	if (u.TargetLat == nil) != (u.TargetLng == nil) {
		return fmt.Errorf("target latitude and longitude must be given together")
	}
	if u.TargetLat != nil && u.Bearing != nil {
		return fmt.Errorf("give either a bearing or a target, not both")
	}
	if u.Bearing != nil && (*u.Bearing < 0 || *u.Bearing >= 360) {
		return fmt.Errorf("bearing %v out of range", *u.Bearing)
	}
	return nil
}

// setPosition applies a manual position to a photo and persists it.
func (s *photoStore) setPosition(id string, u positionUpdate) (Photo, error) {
	if err := u.validate(); err != nil {
		return Photo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Photo{}, errPhotoNotFound
	}

	lat, lng := u.Lat, u.Lng
	p.Latitude = &lat
	p.Longitude = &lng
	p.LocationSource = sourceManual

	switch {
	case u.TargetLat != nil:
		b := forwardBearing(lat, lng, *u.TargetLat, *u.TargetLng)
		p.Bearing = &b
		p.BearingSource = sourceManual
	case u.Bearing != nil:
		b := *u.Bearing
		p.Bearing = &b
		p.BearingSource = sourceManual
	}

	p.refreshDerived()
	if err := s.write(p); err != nil {
		return Photo{}, err
	}
	return *p, nil
}
