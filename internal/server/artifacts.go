package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateArtifact mints a fresh artifact id for the session and invalidates any
// prior payment record. Called once per successfully generated document.
func (s *Server) CreateArtifact(c *gin.Context) {
	sid := sessionID(c)
	artifactID := s.store.StartNewArtifact(sid)

	s.log.Info("artifact registered", zap.String("artifact_id", artifactID))
	c.JSON(http.StatusCreated, gin.H{"artifact_id": artifactID})
}

// GetDownloadAuthorization answers the single question the download gate asks.
// Blocks while the verification loop polls the gateway; closing the request
// aborts the wait between attempts.
func (s *Server) GetDownloadAuthorization(c *gin.Context) {
	sid := sessionID(c)
	artifactID := c.Param("artifact_id")

	if err := s.verifySvc.EnsureAuthorized(c.Request.Context(), sid, artifactID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"artifact_id": artifactID,
		"authorized":  true,
	})
}
