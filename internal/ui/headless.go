package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zsprackett/trainwatch/internal/client"
	"github.com/zsprackett/trainwatch/internal/monitor"
)

// ErrNoUpdates is returned by RunHeadless when the channel closed before a
// single snapshot arrived.
var ErrNoUpdates = errors.New("channel closed before any update")

// RunHeadless follows one job and writes a line to w for every visible
// change. With an empty jobID a new job is started first. It returns when
// the channel closes or ctx is cancelled.
func RunHeadless(ctx context.Context, c *client.Client, jobID string, notifier monitor.Notifier, w io.Writer, logger *slog.Logger) error {
	if jobID == "" {
		id, err := c.StartJob(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "started job %s\n", id)
		jobID = id
	}

	var (
		mon  *monitor.Monitor
		last string
	)
	// Callbacks come from the monitor goroutine one at a time.
	mon = monitor.New(jobID, c.StreamURL(jobID), func() {
		st := mon.State()
		line := FormatLine(st, time.Now())
		key := fmt.Sprint(st.Conn, st.Snapshot)
		if key == last {
			return
		}
		last = key
		fmt.Fprintln(w, line)
	}, notifier, logger)
	mon.Start()

	select {
	case <-ctx.Done():
		mon.Stop()
		<-mon.Done()
		return ctx.Err()
	case <-mon.Done():
	}

	st := mon.State()
	if st.Snapshot == nil {
		return fmt.Errorf("job %s: %w", jobID, ErrNoUpdates)
	}
	fmt.Fprintf(w, "job %s %s at %s%%, watched for %s\n",
		jobID, st.Snapshot.Status, fixed(st.Snapshot.Percent(), 1),
		strings.TrimSpace(humanize.RelTime(st.MountedAt, time.Now(), "", "")))
	return nil
}
