package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
)

// defaultHistoryWindow is the history range when from is omitted.
const defaultHistoryWindow = 24 * time.Hour

// ProjectionResponse is the JSON form of a projection. Base units are
// decimal strings since they can exceed 2^53.
type ProjectionResponse struct {
	PendingBaseUnits string  `json:"pendingBaseUnits"`
	PendingDisplay   float64 `json:"pendingDisplay"`
	PendingFormatted string  `json:"pendingFormatted"`
	APYPercent       float64 `json:"apyPercent"`
	APYTheoretical   bool    `json:"apyTheoretical"`
	AsOf             int64   `json:"asOf"`
	HasPool          bool    `json:"hasPool"`
	HasUser          bool    `json:"hasUser"`
	Slot             int64   `json:"slot"`
}

// APYResponse is the APY breakdown of the current pool snapshot.
type APYResponse struct {
	Pool           string  `json:"pool"`
	Percent        float64 `json:"percent"`
	Theoretical    bool    `json:"theoretical"`
	RatePerSecUI   float64 `json:"ratePerSec"`
	TotalStakedUI  float64 `json:"totalStaked"`
	YearlyRewards  float64 `json:"yearlyRewards"`
	SecondsPerYear int64   `json:"secondsPerYear"`
}

// HistoryPoint is one pool snapshot in a history response.
type HistoryPoint struct {
	TimestampMs      int64   `json:"timestampMs"`
	Slot             int64   `json:"slot"`
	AccScaled        string  `json:"accScaled"`
	RewardRatePerSec uint64  `json:"rewardRatePerSec"`
	TotalStaked      uint64  `json:"totalStaked"`
	APYPercent       float64 `json:"apyPercent"`
	Theoretical      bool    `json:"theoretical"`
}

func (s *Server) projectionResponse(res domain.ProjectionResult) ProjectionResponse {
	return ProjectionResponse{
		PendingBaseUnits: res.PendingBaseUnits.String(),
		PendingDisplay:   res.PendingDisplay,
		PendingFormatted: accrual.FormatToken(res.PendingBaseUnits, res.RewardDecimals, 0, 8),
		APYPercent:       res.APYPercent,
		APYTheoretical:   res.APYTheoretical,
		AsOf:             res.AsOf,
		HasPool:          res.HasPool,
		HasUser:          res.HasUser,
		Slot:             res.Slot,
	}
}

func (s *Server) handleProjection(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.projectionResponse(s.projector.Current()))
}

func (s *Server) handleAPY(w http.ResponseWriter, _ *http.Request) {
	pool := s.projector.Snapshots().Pool
	if pool == nil {
		s.writeError(w, http.StatusNotFound, "pool not found")
		return
	}

	apy := accrual.ComputeAPY(pool)
	s.writeJSON(w, http.StatusOK, APYResponse{
		Pool:           pool.Address,
		Percent:        apy.Percent,
		Theoretical:    apy.Theoretical,
		RatePerSecUI:   apy.RatePerSecUI,
		TotalStakedUI:  apy.TotalStakedUI,
		YearlyRewards:  apy.YearlyRewards,
		SecondsPerYear: apy.SecondsPerYear,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}

	to := s.now().UnixMilli()
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
		to = parsed
	}

	from := to - defaultHistoryWindow.Milliseconds()
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
		from = parsed
	}

	if from > to {
		s.writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	points, err := s.history.GetRange(r.Context(), s.pool, from, to)
	if err != nil {
		s.logger.Printf("history query failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	out := make([]HistoryPoint, 0, len(points))
	for _, p := range points {
		out = append(out, HistoryPoint{
			TimestampMs:      p.TimestampMs,
			Slot:             p.Slot,
			AccScaled:        p.AccScaled,
			RewardRatePerSec: p.RewardRatePerSec,
			TotalStaked:      p.TotalStaked,
			APYPercent:       p.APYPercent,
			Theoretical:      p.Theoretical,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "refresher not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, s.refresher.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "refresher not configured")
		return
	}

	if _, err := s.refresher.Refresh(r.Context(), true); err != nil {
		s.logger.Printf("forced refresh failed: %v", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.refresher.Status())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const streamWriteTimeout = 5 * time.Second

// handleStream pushes a projection on every projector tick until the client
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.projector.Subscribe()
	defer cancel()

	// The reader only detects disconnects; client messages are ignored.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case res, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(s.projectionResponse(res)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Printf("stream write failed: %v", err)
				}
				return
			}
		}
	}
}
