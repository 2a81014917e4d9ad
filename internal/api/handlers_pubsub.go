package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type publishRequest struct {
	Channel     string `json:"channel"`
	Payload     string `json:"payload"`
	PublisherID string `json:"publisherId"`
}

func (s *Server) handlePublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		badRequest(c, "publish requires channel")
		return
	}
	delivered := s.broker.Publish(req.Channel, req.Payload, req.PublisherID)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

func (s *Server) handleChannels(c *gin.Context) {
	channels := s.broker.Channels(c.Query("pattern"))
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

type numSubRequest struct {
	Channels []string `json:"channels"`
}

func (s *Server) handleNumSub(c *gin.Context) {
	var req numSubRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Channels) == 0 {
		badRequest(c, "numsub requires channels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": s.broker.NumSub(req.Channels...)})
}

func (s *Server) handleNumPat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"patterns": s.broker.NumPat()})
}
