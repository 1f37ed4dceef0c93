package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/news"
)

const (
	streamInterval    = 100 * time.Millisecond
	newsFramePeriod   = 5
	heartbeatInterval = 15 * time.Second
)

type streamAsset struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

type updateFrame struct {
	Type        string        `json:"type"`
	Tick        uint64        `json:"tick"`
	Running     bool          `json:"running"`
	Paused      bool          `json:"paused"`
	SimDate     string        `json:"simDate"`
	Commodities []streamAsset `json:"commodities"`
}

type newsFrame struct {
	Type   string       `json:"type"`
	Events []news.Event `json:"events"`
}

// stream pushes periodic market updates as server-sent events until the
// client disconnects. News events are queued from the engine callback and
// flushed on their own cadence so a burst never delays price frames.
func (s *Server) stream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return
	}

	events := make(chan news.Event, 64)
	unsubscribe := s.ctrl.SubscribeNews(func(ev news.Event) {
		select {
		case events <- ev:
		default: // slow consumer drops events rather than stalling the tick
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	s.logger.Debug("stream client connected", zap.String("remote", c.ClientIP()))
	iteration := 0
	for {
		select {
		case <-c.Request.Context().Done():
			s.logger.Debug("stream client disconnected", zap.String("remote", c.ClientIP()))
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case <-ticker.C:
			if err := s.writeFrame(c, s.updateFrame()); err != nil {
				return
			}
			iteration++
			if iteration%newsFramePeriod == 0 {
				if frame := drainNews(events); frame != nil {
					if err := s.writeFrame(c, frame); err != nil {
						return
					}
				}
			}
			flusher.Flush()
		}
	}
}

func (s *Server) updateFrame() *updateFrame {
	st := s.ctrl.Status()
	infos := s.ctrl.Engine().CommodityInfos()
	assets := make([]streamAsset, len(infos))
	for i, info := range infos {
		assets[i] = streamAsset{
			Symbol: info.Symbol,
			Name:   info.Name,
			Price:  info.Price,
			Change: info.Change,
		}
	}
	return &updateFrame{
		Type:        "update",
		Tick:        st.CurrentTick,
		Running:     st.Running,
		Paused:      st.Paused,
		SimDate:     st.SimDate,
		Commodities: assets,
	}
}

func drainNews(events chan news.Event) *newsFrame {
	var batch []news.Event
	for {
		select {
		case ev := <-events:
			batch = append(batch, ev)
		default:
			if len(batch) == 0 {
				return nil
			}
			return &newsFrame{Type: "news", Events: batch}
		}
	}
}

func (s *Server) writeFrame(c *gin.Context, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	return err
}
