package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/internal/cli/health"
	"github.com/marmos91/mediaforge/internal/cli/output"
	"github.com/marmos91/mediaforge/internal/cli/timeutil"
	"github.com/marmos91/mediaforge/pkg/config"
)

var (
	statusOutput  string
	statusAPIAddr string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Query the readiness endpoint of a running server.

The API address defaults to localhost on api.port from the configuration.

Examples:
  # Check the local server
  mediaforge status

  # Check another instance, as JSON
  mediaforge status --api-addr media-1:8080 -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAPIAddr, "api-addr", "", "API address host:port (default: localhost:<api.port>)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus is what status prints.
type ServerStatus struct {
	Running    bool      `json:"running" yaml:"running"`
	Healthy    bool      `json:"healthy" yaml:"healthy"`
	Message    string    `json:"message" yaml:"message"`
	Store      string    `json:"store,omitempty" yaml:"store,omitempty"`
	Latency    string    `json:"store_latency,omitempty" yaml:"store_latency,omitempty"`
	Pipeline   string    `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	QueueDepth int       `json:"queue_depth" yaml:"queue_depth"`
	CheckedAt  time.Time `json:"checked_at" yaml:"checked_at"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	addr := statusAPIAddr
	if addr == "" {
		port := 8080
		if cfg, err := config.Load(GetConfigFile()); err == nil {
			port = cfg.API.Port
		}
		addr = fmt.Sprintf("localhost:%d", port)
	}

	status := probeReadiness(&http.Client{Timeout: 2 * time.Second}, addr)

	p := output.NewPrinter(cmd.OutOrStdout(), format, format == output.FormatTable)
	if format != output.FormatTable {
		return p.Print(status)
	}
	printStatus(p, status)
	return nil
}

func probeReadiness(client *http.Client, addr string) ServerStatus {
	status := ServerStatus{Message: "Server is not running", CheckedAt: time.Now()}

	resp, err := client.Get("http://" + addr + "/health/ready")
	if err != nil {
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Running = true
	var ready health.Readiness
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		status.Message = "Server is running but health response invalid"
		return status
	}

	status.Healthy = ready.Healthy()
	status.Store = ready.Data.Store
	status.Latency = ready.Data.StoreLatency
	status.Pipeline = ready.Data.Pipeline
	status.QueueDepth = ready.Data.QueueDepth
	if status.Healthy {
		status.Message = "Server is running and ready"
	} else {
		status.Message = fmt.Sprintf("Server is running but not ready: %s", ready.Error)
	}
	return status
}

func printStatus(p *output.Printer, s ServerStatus) {
	p.Printf("\nmediaforge Server Status\n========================\n\n")
	switch {
	case !s.Running:
		p.Status("Status", "○ Stopped", output.ToneBad)
	case s.Healthy:
		p.Status("Status", "● Ready", output.ToneGood)
	default:
		p.Status("Status", "● Running (not ready)", output.ToneWarn)
	}
	if s.Running {
		p.Status("Store", s.Store, output.ToneNeutral)
		if s.Latency != "" {
			p.Status("Latency", s.Latency, output.ToneNeutral)
		}
		p.Status("Pipeline", s.Pipeline, output.ToneNeutral)
		p.Status("Queue", fmt.Sprintf("%d", s.QueueDepth), output.ToneNeutral)
	}
	p.Status("Checked", timeutil.FormatTime(s.CheckedAt), output.ToneNeutral)
	p.Printf("\n  %s\n\n", s.Message)
}
