package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/lunkwill/internal/protocol/argument"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

type encodeRequest struct {
	ID        *int     `json:"id"`
	Arguments []string `json:"arguments"`
	Encoding  string   `json:"encoding"`
}

type argumentView struct {
	Length int    `json:"length"`
	Hex    string `json:"hex"`
	Debug  string `json:"debug"`
}

type decodeRequest struct {
	Hex string `json:"hex"`
}

func (s *Server) registerRoutes() {
	routes := s.router
	routes.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": version,
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":          true,
			"uptime":         time.Since(s.started).String(),
			"service":        s.cfg.Name,
			"active_clients": s.ActiveConnections(),
			"version":        version,
		})
	})

	routes.GET("/rules", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rules": s.cfg.Rules})
	})

	routes.POST("/messages/encode", func(c *gin.Context) {
		var req encodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, err := req.message()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		buf, err := message.Encode(m)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hex":    hex.EncodeToString(buf),
			"length": len(buf),
			"valid":  s.validator.Valid(m),
		})
	})

	routes.POST("/messages/decode", func(c *gin.Context) {
		var req decodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		raw, err := hex.DecodeString(req.Hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, used, err := message.Decode(raw)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, message.ErrIncomplete) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		args := make([]argumentView, 0, m.Len())
		for _, arg := range m.Arguments() {
			args = append(args, argumentView{
				Length: arg.Len(),
				Hex:    hex.EncodeToString(arg.Bytes()),
				Debug:  arg.Format(),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"id":        m.ID(),
			"arguments": args,
			"used":      used,
			"trailing":  len(raw) - used,
			"valid":     s.validator.Valid(m),
		})
	})
}

var (
	errMissingID    = errors.New("id is required")
	errIDOutOfRange = errors.New("id must be in [0, 255]")
)

// message builds the request message. Arguments are UTF-8 text unless
// encoding is "hex".
func (r encodeRequest) message() (*message.Message, error) {
	if r.ID == nil {
		return nil, errMissingID
	}
	if *r.ID < 0 || *r.ID > 255 {
		return nil, errIDOutOfRange
	}
	m := message.New(uint8(*r.ID))
	for _, raw := range r.Arguments {
		switch r.Encoding {
		case "", "text":
			m.Add(argument.FromString(raw))
		case "hex":
			b, err := hex.DecodeString(raw)
			if err != nil {
				return nil, err
			}
			m.Add(argument.Own(b))
		default:
			return nil, errors.New("encoding must be text or hex")
		}
	}
	return m, nil
}
