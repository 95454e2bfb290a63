package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/complaint-classifier/internal/config"
	"github.com/aigoflow/complaint-classifier/internal/services"
)

func main() {
	var (
		envFile  = flag.String("env", "", "Optional .env file to load")
		natsURL  = flag.String("nats", "", "NATS server URL (defaults to NATS_URL)")
		httpAddr = flag.String("http", ":5780", "HTTP server address")
		cliMode  = flag.Bool("cli", false, "Run in CLI dashboard mode")
		onceMode = flag.Bool("once", false, "Query once and exit")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	url := *natsURL
	if url == "" {
		url = cfg.NatsURL
	}
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.Name("complaint-classifier-monitor"))
	if err != nil {
		slog.Error("Failed to connect to NATS", "url", url, "error", err)
		os.Exit(1)
	}

	monitor := NewMonitorService(conn, cfg.HealthTopic, cfg.MonitoringTopic)
	defer monitor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := monitor.Start(ctx); err != nil {
		slog.Error("Failed to start monitor", "error", err)
		os.Exit(1)
	}

	switch {
	case *onceMode:
		time.Sleep(2 * time.Second)
		printSnapshot(os.Stdout, monitor.Snapshot())
	case *cliMode:
		runCLIDashboard(ctx, monitor)
	default:
		if err := runHTTPServer(ctx, monitor, *httpAddr); err != nil {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}
}

func printSnapshot(w io.Writer, snap Snapshot) {
	if len(snap.Services) == 0 {
		fmt.Fprintln(w, "No classifier instances found")
	}
	for _, s := range snap.Services {
		fmt.Fprintf(w, "%s (%s)\n", s.Service, s.Endpoint)
		fmt.Fprintf(w, "   Status: %s\n", s.Status)
		fmt.Fprintf(w, "   Provider: %s\n", s.Provider)
		fmt.Fprintf(w, "   Model: %s\n", valueOr(s.Model, "-"))
		fmt.Fprintf(w, "   NATS Topic: %s\n", s.NATSTopic)
		if s.RTT > 0 {
			fmt.Fprintf(w, "   Response Time: %v\n", s.RTT)
		}
		fmt.Fprintf(w, "   Uptime: %s\n", formatDuration(s.Uptime))
		fmt.Fprintln(w)
	}
	for _, q := range snap.Queues {
		fmt.Fprintf(w, "Queue %s: %s (pending=%d active=%d workers=%d)\n",
			q.Subject, q.Status, q.PendingMessages, q.ActiveProcessing, q.WorkerCount)
	}
}

func runCLIDashboard(ctx context.Context, monitor *MonitorService) {
	fmt.Print("\033[2J\033[H\033[?25l")
	defer fmt.Print("\033[?25h")

	updates := monitor.AddListener()
	defer monitor.RemoveListener(updates)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renderDashboard(os.Stdout, monitor.Snapshot())
		case snap := <-updates:
			renderDashboard(os.Stdout, snap)
		}
	}
}

func renderDashboard(w io.Writer, snap Snapshot) {
	fmt.Fprint(w, "\033[2J\033[H")
	fmt.Fprintf(w, "Complaint Classifier Monitor - %s\n\n", time.Now().Format("15:04:05"))

	if len(snap.Services) == 0 {
		fmt.Fprintln(w, "Waiting for heartbeats...")
	} else {
		fmt.Fprintln(w, renderTable([]string{"ENDPOINT", "STATUS", "PROVIDER", "MODEL", "SEEN"}, serviceRows(snap.Services)))
	}

	if len(snap.Queues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderTable([]string{"SUBJECT", "STATUS", "PENDING", "ACTIVE", "WORKERS"}, queueRows(snap.Queues), 3, 4, 5))
	}

	fmt.Fprintf(w, "\nPress Ctrl+C to exit\n")
}

func serviceRows(instances []ServiceStatus) [][]string {
	rows := make([][]string, 0, len(instances))
	for _, s := range instances {
		status := s.Status
		if time.Since(s.LastSeen) > time.Minute && status != "offline" {
			status = "stale"
		}
		rows = append(rows, []string{
			truncateString(s.Endpoint, 40),
			status,
			s.Provider,
			truncateString(valueOr(s.Model, "-"), 24),
			formatDuration(time.Since(s.LastSeen)),
		})
	}
	return rows
}

func queueRows(reports []services.BackpressureReport) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, q := range reports {
		rows = append(rows, []string{
			q.Subject,
			q.Status,
			strconv.FormatInt(q.PendingMessages, 10),
			strconv.FormatInt(q.ActiveProcessing, 10),
			strconv.Itoa(q.WorkerCount),
		})
	}
	return rows
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func newMonitorMux(ctx context.Context, monitor *MonitorService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitor.Snapshot())
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		status, err := monitor.QueryHealth(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	// Server-Sent Events for live updates
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		updates := monitor.AddListener()
		defer monitor.RemoveListener(updates)

		writeEvent(w, monitor.Snapshot())
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.Context().Done():
				return
			case snap := <-updates:
				writeEvent(w, snap)
				flusher.Flush()
			}
		}
	})

	return mux
}

func writeEvent(w io.Writer, snap Snapshot) {
	data, _ := json.Marshal(snap)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func runHTTPServer(ctx context.Context, monitor *MonitorService, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           newMonitorMux(ctx, monitor),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP monitor server", "addr", addr, "api", "http://localhost"+addr+"/api/status")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
