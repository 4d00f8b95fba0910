// Package metasync mirrors a location into the generic metadata of the
// host object that owns it, so host features that only read object meta
// see the coordinates too.
package metasync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/host"
)

// Mirrored meta keys
const (
	KeyLatitude  = "geo_latitude"
	KeyLongitude = "geo_longitude"
	KeyAddress   = "geo_address"
	KeyPublic    = "geo_public"
)

// Keys lists every mirrored key in write order
var Keys = []string{KeyLatitude, KeyLongitude, KeyAddress, KeyPublic}

// Action selects what Sync does with the mirrored keys
type Action int

const (
	// Upsert writes the present fields
	Upsert Action = iota
	// Delete removes every mirrored key
	Delete
)

func (a Action) String() string {
	if a == Delete {
		return "delete"
	}
	return "upsert"
}

// Fields carries the values to mirror. Nil fields are left untouched.
type Fields struct {
	Lat     *float64
	Lng     *float64
	Address *geo.Address
	Public  *bool
}

// FieldsOf builds a full Fields set from a location
func FieldsOf(loc geo.Location) Fields {
	lat, lng, addr, public := loc.Lat, loc.Lng, loc.Address, loc.Public()
	return Fields{Lat: &lat, Lng: &lng, Address: &addr, Public: &public}
}

// Synchronizer writes mirrored keys through the host's metadata capability
type Synchronizer struct {
	meta   host.Meta
	logger zerolog.Logger
}

// New creates a Synchronizer over the host metadata capability
func New(meta host.Meta) *Synchronizer {
	return &Synchronizer{
		meta:   meta,
		logger: log.With().Str("component", "metasync").Logger(),
	}
}

// Sync applies action to the metadata of ref. Every key is attempted;
// the failures are joined into the returned error.
func (s *Synchronizer) Sync(ctx context.Context, ref geo.ObjectRef, action Action, fields Fields) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	meta := s.capability(ref.Type)

	var errs []error
	switch action {
	case Delete:
		for _, key := range Keys {
			if err := meta.Delete(ctx, ref.ID, key); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			}
		}
	case Upsert:
		for _, kv := range values(fields) {
			if err := meta.Update(ctx, ref.ID, kv[0], kv[1]); err != nil {
				errs = append(errs, fmt.Errorf("update %s: %w", kv[0], err))
			}
		}
	default:
		return fmt.Errorf("%w: unknown sync action %d", geo.ErrInvalidArgument, action)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("mirror %s of %s: %w", action, ref, err)
	}
	s.logger.Debug().
		Str("object", ref.String()).
		Str("action", action.String()).
		Msg("Mirrored location meta")
	return nil
}

func (s *Synchronizer) capability(t geo.ObjectType) host.ObjectMeta {
	switch t {
	case geo.Term:
		return s.meta.TermMeta()
	case geo.User:
		return s.meta.UserMeta()
	case geo.Comment:
		return s.meta.CommentMeta()
	default:
		return s.meta.PostMeta()
	}
}

// values returns key/value pairs for the present fields in key order
func values(f Fields) [][2]string {
	var kv [][2]string
	if f.Lat != nil {
		kv = append(kv, [2]string{KeyLatitude, formatCoordinate(*f.Lat)})
	}
	if f.Lng != nil {
		kv = append(kv, [2]string{KeyLongitude, formatCoordinate(*f.Lng)})
	}
	if f.Address != nil {
		kv = append(kv, [2]string{KeyAddress, f.Address.String()})
	}
	if f.Public != nil {
		public := "0"
		if *f.Public {
			public = "1"
		}
		kv = append(kv, [2]string{KeyPublic, public})
	}
	return kv
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(geo.RoundCoordinate(v), 'f', -1, 64)
}
