package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/proximity"
)

type queryHandler struct {
	engine *proximity.Engine
}

// Nearby returns the locations of one object type within a distance of
// ?lat= and ?lng=, nearest first
func (h *queryHandler) Nearby(c *gin.Context) {
	typ, err := geo.ParseObjectType(c.Param("type"))
	if err != nil {
		fail(c, err)
		return
	}

	lat, err := floatQuery(c, "lat")
	if err != nil {
		fail(c, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err))
		return
	}
	lng, err := floatQuery(c, "lng")
	if err != nil {
		fail(c, fmt.Errorf("%w: %w", geo.ErrInvalidCoordinates, err))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			fail(c, fmt.Errorf("%w: limit %q", geo.ErrInvalidArgument, raw))
			return
		}
	}
	includePrivate, _ := strconv.ParseBool(c.DefaultQuery("include_private", "false"))

	locs, err := h.engine.Nearby(c.Request.Context(), proximity.Query{
		Type:           typ,
		Lat:            lat,
		Lng:            lng,
		Distance:       c.Query("distance"),
		Limit:          limit,
		IncludePrivate: includePrivate,
	})
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]gin.H, 0, len(locs))
	for _, loc := range locs {
		items = append(items, nearbyBody(loc))
	}
	c.JSON(http.StatusOK, gin.H{"locations": items, "count": len(items)})
}

// Convert converts ?distance= (or ?amount= and ?from=) into ?to=
func (h *queryHandler) Convert(c *gin.Context) {
	to := c.Query("to")

	var (
		amount float64
		from   string
	)
	if text := c.Query("distance"); text != "" {
		d, err := calculator.ParseDistance(text)
		if err != nil {
			fail(c, err)
			return
		}
		amount, from = d.Quantity, d.Unit
	} else {
		var err error
		if amount, err = floatQuery(c, "amount"); err != nil {
			fail(c, fmt.Errorf("%w: %w", calculator.ErrInvalidAmount, err))
			return
		}
		from = c.Query("from")
	}

	converted, err := calculator.Convert(amount, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": converted, "unit": to})
}

func floatQuery(c *gin.Context, name string) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, raw)
	}
	return v, nil
}
