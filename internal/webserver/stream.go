package webserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zsprackett/trainwatch/internal/db"
	"github.com/zsprackett/trainwatch/internal/events"
	"github.com/zsprackett/trainwatch/internal/training"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type streamError struct {
	Error string `json:"error"`
	JobID string `json:"job_id"`
}

// handleStream runs the simulation for one job and pushes every snapshot to
// the client. The client never sends anything; reads only detect departure.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	job, err := s.store.GetJob(id)
	if err != nil {
		if !errors.Is(err, db.ErrJobNotFound) {
			s.logger.Error("webserver: load job failed", "job", id, "err", err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(streamError{Error: "Job not found", JobID: id})
		closeNormal(conn)
		return
	}

	// A finished job is not re-run; the client just gets its final state.
	if job.Done() {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(job.Snapshot)
		closeNormal(conn)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	s.logger.Info("webserver: stream opened", "job", id)
	started := false
	err = s.sim.Run(ctx, job.Snapshot, func(snap training.Snapshot) error {
		if err := s.store.UpdateSnapshot(snap); err != nil {
			s.logger.Warn("webserver: persist snapshot failed", "job", id, "err", err)
		}
		switch {
		case !started:
			started = true
			s.recordEvent(id, db.EventStarted, snap)
			s.publish(events.FromSnapshot(events.TypeJobStarted, snap))
		case snap.Done():
			s.recordEvent(id, db.EventCompleted, snap)
			s.publish(events.FromSnapshot(events.TypeJobCompleted, snap))
		default:
			s.recordEvent(id, db.EventProgress, snap)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(snap)
	})
	if err != nil {
		s.logger.Info("webserver: client disconnected from job", "job", id, "err", err)
		if latest, gerr := s.store.GetJob(id); gerr == nil {
			s.recordEvent(id, db.EventClientGone, latest.Snapshot)
			s.publish(events.FromSnapshot(events.TypeJobAbandoned, latest.Snapshot))
		}
		return
	}
	s.logger.Info("webserver: job completed", "job", id)
	closeNormal(conn)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
