package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/openwatch/netmon-server/api/v1"
	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/events"
	srvErrors "github.com/openwatch/netmon-server/pkg/errors"
)

// GetStats returns the self-monitoring moving averages
// (GET /stats)
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, v1.StatsResponse{
		QueueAverages:         h.core.Stats().Averages(),
		AvgQueuingTimeSeconds: h.core.AvgQueuingTime(),
	})
}

// GetParameters returns the merged supported-parameter catalog of all
// registered targets
// (GET /parameters)
func (h *Handler) GetParameters(c *gin.Context) {
	catalog := h.core.Context().Objects.MergedParameterCatalog()
	c.JSON(http.StatusOK, v1.NewParameterCatalog(catalog))
}

// GetItem returns one collection item
// (GET /items/:id)
func (h *Handler) GetItem(c *gin.Context) {
	item, ok := h.lookupItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, itemResponse(item))
}

// ForcePollItem attaches a one-shot force-poll requester to an item
// (POST /items/:id/forcepoll)
func (h *Handler) ForcePollItem(c *gin.Context) {
	item, ok := h.lookupItem(c)
	if !ok {
		return
	}

	item.RequestForcePoll(&apiForcePollSession{itemID: item.ID()})
	zap.S().Named("item_handler").Infow("force poll requested", "dciId", item.ID(), "ownerId", item.OwnerID())
	c.JSON(http.StatusAccepted, itemResponse(item))
}

func (h *Handler) lookupItem(c *gin.Context) (*dcc.Item, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return nil, false
	}

	item := h.core.Context().Objects.FindItem(uint32(id))
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": srvErrors.NewItemNotFoundError(uint32(id)).Error()})
		return nil, false
	}
	return item, true
}

func itemResponse(item *dcc.Item) v1.ItemResponse {
	return v1.ItemResponse{
		ID:          item.ID(),
		GUID:        item.GUID().String(),
		Name:        item.Name(),
		Description: item.Description(),
		Origin:      item.Source().Label(),
		Status:      item.Status().String(),
		OwnerID:     item.OwnerID(),
		LastPoll:    item.LastPollTime().Unix(),
		ErrorCount:  item.ErrorCount(),
	}
}

// apiForcePollSession is the requester handle attached on behalf of an API
// caller. The API has no persistent session to push into, so the completion
// notification is logged.
type apiForcePollSession struct {
	itemID uint32
}

func (s *apiForcePollSession) Notify(code string, objectID uint32) {
	zap.S().Named("item_handler").Infow("force poll completed", "notification", code, "dciId", s.itemID, "ownerId", objectID)
}

func (s *apiForcePollSession) Release() {}

var _ events.ClientSession = (*apiForcePollSession)(nil)
