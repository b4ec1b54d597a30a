package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/internal/cli/output"
	"github.com/marmos91/mediaforge/internal/cli/timeutil"
	"github.com/marmos91/mediaforge/pkg/config"
	"github.com/marmos91/mediaforge/pkg/media"
)

var (
	mediaOutput string
	mediaStatus string
	mediaLimit  int
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Inspect uploaded media",
	Long: `Inspect the media catalogue directly from the configured store.

Examples:
  # List the newest uploads
  mediaforge media list

  # Only failed transcodes, as JSON
  mediaforge media list --status failed -o json

  # Show one record
  mediaforge media show vid_1718000000_42`,
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List media records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMediaList,
}

var mediaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one media record",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaShow,
}

func init() {
	mediaCmd.PersistentFlags().StringVarP(&mediaOutput, "output", "o", "table", "Output format (table|json|yaml)")
	mediaListCmd.Flags().StringVar(&mediaStatus, "status", "", "Only list records in this status (pending|ready|failed)")
	mediaListCmd.Flags().IntVar(&mediaLimit, "limit", 50, "Maximum number of records (0 for all)")

	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaShowCmd)
}

// mediaView is the printable form of a record.
type mediaView struct {
	ID           string    `json:"id" yaml:"id"`
	OriginalName string    `json:"original_name" yaml:"original_name"`
	Status       string    `json:"status" yaml:"status"`
	SizeBytes    int64     `json:"size_bytes" yaml:"size_bytes"`
	StoragePath  string    `json:"storage_path" yaml:"storage_path"`
	Checksum     string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

func newMediaView(r *media.Record) mediaView {
	return mediaView{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		Status:       string(r.Status),
		SizeBytes:    r.SizeBytes,
		StoragePath:  r.StoragePath,
		Checksum:     r.Checksum,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type mediaList struct {
	items []mediaView
	now   time.Time
}

func (l mediaList) Headers() []string {
	return []string{"ID", "Name", "Status", "Size", "Age"}
}

func (l mediaList) Rows() [][]string {
	rows := make([][]string, 0, len(l.items))
	for _, m := range l.items {
		rows = append(rows, []string{
			m.ID,
			m.OriginalName,
			m.Status,
			strconv.FormatInt(m.SizeBytes, 10),
			timeutil.FormatAge(m.CreatedAt, l.now),
		})
	}
	return rows
}

// openStore loads the configuration and opens its media store.
func openStore(ctx context.Context) (media.Store, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	return config.CreateMediaStore(ctx, &cfg.Database)
}

func runMediaList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(mediaOutput)
	if err != nil {
		return err
	}

	opts := media.ListOptions{Limit: mediaLimit}
	if mediaStatus != "" {
		if opts.Status, err = media.ParseStatus(mediaStatus); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListMedia(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	list := mediaList{items: make([]mediaView, 0, len(records)), now: time.Now()}
	for _, r := range records {
		list.items = append(list.items, newMediaView(r))
	}

	p := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if format == output.FormatTable {
		if len(list.items) == 0 {
			p.Printf("No media found\n")
			return nil
		}
		return p.Print(list)
	}
	return p.Print(list.items)
}

func runMediaShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(mediaOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.GetMedia(ctx, args[0])
	if errors.Is(err, media.ErrMediaNotFound) {
		return fmt.Errorf("media %q not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get media: %w", err)
	}

	view := newMediaView(rec)
	if format != output.FormatTable {
		return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(view)
	}
	checksum := view.Checksum
	if checksum == "" {
		checksum = "-"
	}
	return output.KeyValueTable(cmd.OutOrStdout(), [][2]string{
		{"ID", view.ID},
		{"Name", view.OriginalName},
		{"Status", view.Status},
		{"Size", strconv.FormatInt(view.SizeBytes, 10)},
		{"Path", view.StoragePath},
		{"Checksum", checksum},
		{"Created", timeutil.FormatTime(view.CreatedAt)},
		{"Updated", timeutil.FormatTime(view.UpdatedAt)},
	})
}
