package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-announcement-api/internal/middleware"
	"github.com/noah-isme/lms-announcement-api/internal/models"
)

func actorFromContext(c *gin.Context) models.Actor {
	return models.ActorFromClaims(middleware.Claims(c))
}
