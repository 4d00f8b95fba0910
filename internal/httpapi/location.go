package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/store"
)

type locationHandler struct {
	store *store.Store
}

func objectRef(c *gin.Context) (geo.ObjectRef, error) {
	return geo.ParseRef(c.Param("type"), c.Param("id"))
}

func locationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: location id %q", geo.ErrInvalidArgument, c.Param("id"))
	}
	return id, nil
}

// saveRequest is the body of a location save. Coordinates are pointers
// so a missing lat or lng is told apart from 0.
type saveRequest struct {
	Lat        *float64    `json:"lat"`
	Lng        *float64    `json:"lng"`
	Title      string      `json:"title"`
	Address    geo.Address `json:"address"`
	Status     geo.Status  `json:"status"`
	ObjectDate time.Time   `json:"object_date"`
}

func (r saveRequest) data() (store.LocationData, error) {
	if r.Lat == nil || r.Lng == nil {
		return store.LocationData{}, fmt.Errorf("%w: lat and lng are required", geo.ErrInvalidCoordinates)
	}
	return store.LocationData{
		Lat:        *r.Lat,
		Lng:        *r.Lng,
		Title:      r.Title,
		Address:    r.Address,
		Status:     r.Status,
		ObjectDate: r.ObjectDate,
	}, nil
}

// Get returns the location attached to an object
func (h *locationHandler) Get(c *gin.Context) {
	ref, err := objectRef(c)
	if err != nil {
		fail(c, err)
		return
	}
	loc, err := h.store.GetLocation(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, locationBody(*loc))
}

// Save creates or replaces the location of an object
func (h *locationHandler) Save(c *gin.Context) {
	ref, err := objectRef(c)
	if err != nil {
		fail(c, err)
		return
	}

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %w", geo.ErrInvalidArgument, err))
		return
	}
	data, err := req.data()
	if err != nil {
		fail(c, err)
		return
	}

	id, err := h.store.SaveLocation(c.Request.Context(), data, ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "object": ref})
}

// Delete removes the location of an object with its metadata
func (h *locationHandler) Delete(c *gin.Context) {
	ref, err := objectRef(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := h.store.DeleteLocation(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "deleted": true})
}

// Trash marks the location of an object private
func (h *locationHandler) Trash(c *gin.Context) {
	ref, err := objectRef(c)
	if err != nil {
		fail(c, err)
		return
	}
	id, err := h.store.TrashLocation(c.Request.Context(), ref)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "status": geo.StatusPrivate})
}

// ListMeta returns every metadata value of a location
func (h *locationHandler) ListMeta(c *gin.Context) {
	id, err := locationID(c)
	if err != nil {
		fail(c, err)
		return
	}
	values, err := h.store.ListLocationMeta(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "meta": values})
}

// GetMeta returns one metadata value
func (h *locationHandler) GetMeta(c *gin.Context) {
	id, err := locationID(c)
	if err != nil {
		fail(c, err)
		return
	}
	key := c.Param("key")
	v, err := h.store.GetLocationMeta(c.Request.Context(), id, key)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "key": key, "value": v})
}

// SaveMeta upserts the metadata values in the body
func (h *locationHandler) SaveMeta(c *gin.Context) {
	id, err := locationID(c)
	if err != nil {
		fail(c, err)
		return
	}

	var values map[string]geo.MetaValue
	if err := c.ShouldBindJSON(&values); err != nil {
		fail(c, fmt.Errorf("%w: %w", geo.ErrInvalidArgument, err))
		return
	}

	if len(values) == 0 {
		fail(c, fmt.Errorf("%w: no metadata values in body", geo.ErrInvalidArgument))
		return
	}

	ids, err := h.store.SaveLocationMeta(c.Request.Context(), id, values)
	if err != nil {
		fail(c, err)
		return
	}
	if ids == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("location %d not found", id)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "meta_ids": ids})
}

// DeleteMeta removes the keys named by ?key=, or all metadata with ?all=true
func (h *locationHandler) DeleteMeta(c *gin.Context) {
	id, err := locationID(c)
	if err != nil {
		fail(c, err)
		return
	}

	keys := c.QueryArray("key")
	if len(keys) == 0 && c.Query("all") != "true" {
		fail(c, fmt.Errorf("%w: name at least one key or set all=true", geo.ErrInvalidArgument))
		return
	}

	if err := h.store.DeleteLocationMeta(c.Request.Context(), id, keys...); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location_id": id, "deleted": keys})
}

// locationBody renders a location with its formatted address
func locationBody(loc geo.Location) gin.H {
	body := gin.H{
		"id":          loc.ID,
		"status":      loc.Status,
		"lat":         loc.Lat,
		"lng":         loc.Lng,
		"title":       loc.Title,
		"address":     loc.Address,
		"display":     loc.Address.String(),
		"updated":     loc.Updated,
		"object_type": loc.Object.Type,
		"object_id":   loc.Object.ID,
	}
	if !loc.ObjectDate.IsZero() {
		body["object_date"] = loc.ObjectDate
	}
	return body
}

// nearbyBody renders a proximity result, which always carries its
// distance in the query unit
func nearbyBody(loc geo.Location) gin.H {
	body := locationBody(loc)
	body["distance"] = loc.Distance
	return body
}
