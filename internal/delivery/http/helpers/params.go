package helpers

import (
	"net/http"
	"strconv"
	"time"
)

// PathID parses the int64 path value name. On failure it writes a 400 and returns false.
func PathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// QueryInt returns the integer query parameter key, or def when it is absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

// QueryFloat returns the float query parameter key, or def when it is absent or malformed.
func QueryFloat(r *http.Request, key string, def float64) float64 {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}

// QueryInt64Ptr returns nil when key is absent. ok is false when the value is malformed.
func QueryInt64Ptr(r *http.Request, key string) (v *int64, ok bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// QueryTime parses key as RFC3339 or YYYY-MM-DD. nil when absent; ok false when malformed.
func QueryTime(r *http.Request, key string) (t *time.Time, ok bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if v, err := time.Parse(layout, s); err == nil {
			return &v, true
		}
	}
	return nil, false
}
