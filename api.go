package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const defaultNearKm = 10.0

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

// GET /api/photos returns every photo record, newest first.
func listPhotosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, photos.list())
}

// photoHandler routes /api/photos/near, /api/photos/{id} and
// POST /api/photos/{id}/position.
func photoHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/photos/")
	if rest == "near" {
		nearPhotosHandler(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		p, ok := photos.get(parts[0])
		if !ok {
			http.Error(w, "No such photo", http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	case len(parts) == 2 && parts[1] == "position" && r.Method == http.MethodPost:
		setPositionHandler(w, r, parts[0])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func setPositionHandler(w http.ResponseWriter, r *http.Request, id string) {
	var update positionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	p, err := photos.setPosition(id, update)
	if err != nil {
		if errors.Is(err, errPhotoNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, p)
}

// GET /api/photos/near?lat=..&lng=..&km=.. returns positioned photos
// within km of the given point.
func nearPhotosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		http.Error(w, "Invalid lat", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		http.Error(w, "Invalid lng", http.StatusBadRequest)
		return
	}
	km := defaultNearKm
	if v := q.Get("km"); v != "" {
		km, err = strconv.ParseFloat(v, 64)
		if err != nil || km <= 0 {
			http.Error(w, "Invalid km", http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, photos.near(lat, lng, km))
}
