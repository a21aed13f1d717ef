// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for decoding request bodies and query
// parameters into ledger types.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dividi/internal/core"
	"dividi/internal/ledger"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input that never reached the ledger.
var errBadRequest = errors.New("bad request")

// decodeJSON reads exactly one JSON document into dst. Unknown fields are
// rejected so that typos in field names surface as errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// FilterParams holds the raw expense list query before the participant
// reference is resolved.
type FilterParams struct {
	Filter      ledger.Filter
	Participant string
}

// ParseFilterParams reads settled, settlement, from, to, participant and
// category from the query string. Dates accept RFC 3339 or YYYY-MM-DD.
func ParseFilterParams(query url.Values) (FilterParams, error) {
	var p FilterParams

	for name, dst := range map[string]**bool{
		"settled":    &p.Filter.Settled,
		"settlement": &p.Filter.Settlement,
	} {
		v := strings.TrimSpace(query.Get(name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: %s must be true or false", errBadRequest, name)
		}
		*dst = &b
	}

	var err error
	if p.Filter.From, err = parseTime(query.Get("from")); err != nil {
		return p, fmt.Errorf("%w: from: %v", errBadRequest, err)
	}
	if p.Filter.To, err = parseTime(query.Get("to")); err != nil {
		return p, fmt.Errorf("%w: to: %v", errBadRequest, err)
	}
	if !p.Filter.From.IsZero() && !p.Filter.To.IsZero() && !p.Filter.From.Before(p.Filter.To) {
		return p, fmt.Errorf("%w: from must be before to", errBadRequest)
	}

	p.Filter.Category = sanitizeInput(query.Get("category"))
	p.Participant = sanitizeInput(query.Get("participant"))
	return p, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
