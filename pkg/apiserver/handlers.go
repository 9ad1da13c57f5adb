package apiserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"netsentinel/pkg/database"
	"netsentinel/pkg/enrich"
)

func (s *APIServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *APIServer) mapData(c *gin.Context) {
	points, err := s.db.MapPoints(c.Request.Context())
	if err != nil {
		s.logger.Errorf("map query: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *APIServer) tableData(c *gin.Context) {
	filter := database.EventFilter{
		Verdict:  c.Query("verdict"),
		Protocol: c.Query("protocol"),
		Address:  c.Query("address"),
		Category: c.Query("category"),
		Limit:    s.cfg.TableLimit,
	}

	if v := c.Query("port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid port"})
			return
		}
		filter.Port = port
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		filter.Since = t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid until"})
			return
		}
		filter.Until = t
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > s.cfg.TableLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	events, err := s.db.RecentEvents(c.Request.Context(), filter)
	if err != nil {
		s.logger.Errorf("table query: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *APIServer) rankings(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	switch c.DefaultQuery("by", "country") {
	case "country":
		ranks, err := s.db.TopCountries(c.Request.Context(), limit)
		if err != nil {
			s.logger.Errorf("country ranking query: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, ranks)
	case "port":
		ranks, err := s.db.TopPorts(c.Request.Context(), limit)
		if err != nil {
			s.logger.Errorf("port ranking query: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, ranks)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "by must be country or port"})
	}
}

type traceRequest struct {
	IP string `json:"ip" binding:"required"`
}

func (s *APIServer) runTrace(c *gin.Context) {
	var req traceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ip"})
		return
	}

	if enrich.IsBogon(req.IP) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is not routable"})
		return
	}

	hops, err := s.tracer.Trace(c.Request.Context(), req.IP)
	if err != nil {
		s.logger.Warnf("trace of %s failed: %v", req.IP, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "trace failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ip": req.IP, "hops": hops})
}
