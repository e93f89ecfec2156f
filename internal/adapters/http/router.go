package http

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/adapters/signal"
	"github.com/dkeye/Duo/internal/app/orch"
	"github.com/dkeye/Duo/internal/config"
	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
)

// RoomIDSource hands out identifiers for new rooms.
type RoomIDSource interface {
	NewRoomID() domain.RoomID
}

type RoomResponse struct {
	ID          domain.RoomID    `json:"id"`
	MemberCount int              `json:"member_count"`
	Members     []core.MemberDTO `json:"members,omitempty"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ids RoomIDSource) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewSignalWSController(o, cfg)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.GET("/rooms", listRooms(o.Rooms))
	api.POST("/rooms", createRoom(ids))
	api.GET("/rooms/:id", getRoom(o.Rooms))

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func listRooms(rooms core.RoomManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := rooms.List()
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		c.JSON(http.StatusOK, gin.H{"rooms": list})
	}
}

// createRoom only reserves a name; the room itself appears on first join.
func createRoom(ids RoomIDSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, RoomResponse{ID: ids.NewRoomID()})
	}
}

func getRoom(rooms core.RoomManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := domain.ParseRoomID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		room, ok := rooms.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, RoomResponse{
			ID:          id,
			MemberCount: room.MemberCount(),
			Members:     room.MembersSnapshot(),
		})
	}
}
