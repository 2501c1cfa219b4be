package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Laura77-code/tictactoe/internal/apperror"
)

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// roomHandler is a read-only room lookup for operational checks.
func roomHandler(rooms roomGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, err := rooms.GetRoom(c.Request.Context(), c.Param("id"))

		switch {
		case errors.Is(err, apperror.ErrInvalidRoomID):
			c.JSON(http.StatusBadRequest, gin.H{"error": apperror.ErrInvalidRoomID.Error()})
		case errors.Is(err, apperror.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": apperror.ErrRoomNotFound.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, gin.H{"room": room})
		}
	}
}
