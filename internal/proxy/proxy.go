// Package proxy serves the HTTP endpoints used by browsers: the puzzle proxy and room invites.
package proxy

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"github.com/victornm/bananaquiz/internal/domain"
	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/puzzle"
)

const qrSize = 256

type Fetcher interface {
	Fetch(ctx context.Context) (puzzle.Payload, error)
}

type Rooms interface {
	Get(ctx context.Context, roomID string) (domain.Room, error)
}

type Config struct {
	Fetcher Fetcher
	Rooms   Rooms
	// InviteURL is formatted with the room id to build the link encoded in invite QR codes.
	InviteURL string
}

type Handler struct {
	fetcher   Fetcher
	rooms     Rooms
	inviteURL string
}

func NewHandler(c Config) *Handler {
	if c.InviteURL == "" {
		c.InviteURL = "bananaquiz://rooms/%s"
	}

	return &Handler{
		fetcher:   c.Fetcher,
		rooms:     c.Rooms,
		inviteURL: c.InviteURL,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	noStore := cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})

	r.GET("/fetch-banana-api", noStore, h.FetchPuzzle)
	r.GET("/rooms/:id/invite.png", noStore, h.RoomInvite)
}

// FetchPuzzle relays one puzzle from the puzzle source.
func (h *Handler) FetchPuzzle(c *gin.Context) {
	p, err := h.fetcher.Fetch(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "proxy: fetch puzzle failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": p.Question,
		"solution": p.Solution,
	})
}

// RoomInvite renders a QR code of the invite link of a room.
func (h *Handler) RoomInvite(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.rooms.Get(ctx, id); err != nil {
		e := errors.Convert(err)
		if !stderrors.Is(err, errors.ErrRoomNotFound) {
			slog.ErrorContext(ctx, "proxy: get room failed", "room", id, "error", err)
		}
		c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
		return
	}

	png, err := qrcode.Encode(fmt.Sprintf(h.inviteURL, id), qrcode.Medium, qrSize)
	if err != nil {
		slog.ErrorContext(ctx, "proxy: encode invite failed", "room", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render invite"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
