package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"example.com/flightlog/internal/common"
	"example.com/flightlog/internal/logdata"
	"example.com/flightlog/internal/pipeline"
	"example.com/flightlog/internal/report"
	"example.com/flightlog/internal/storage"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Decode a log file and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printInfo(cmd, ds)
		return nil
	},
}

var channelsGroup string

var channelsCmd = &cobra.Command{
	Use:   "channels <file>",
	Short: "List the decoded channels with statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var channels []*logdata.Channel
		if channelsGroup != "" {
			channels = ds.ChannelsInGroup(channelsGroup)
		} else {
			for _, name := range ds.ChannelNames() {
				channels = append(channels, ds.Channel(name))
			}
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tORIGIN\tSAMPLES\tMEAN\tMIN\tMAX")
		for _, ch := range channels {
			st, ok := ch.Stats()
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.4g\t%.4g\t%.4g\n",
				ch.Name, ch.Origin, st.Count, st.Mean, st.Min, st.Max)
		}
		return w.Flush()
	},
}

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Render a PDF flight summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ds, err := loadDataset(cmd.Context(), path)
		if err != nil {
			return err
		}
		sum, err := fileDigest(path)
		if err != nil {
			return err
		}
		out := reportOut
		if out == "" {
			out = strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"
		}
		if err := report.SaveSummaryPDF(ds, sum, out); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}

var archiveDB string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Store and inspect datasets in a SQLite archive",
}

var archiveSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Decode a log file and store the dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		arc, err := storage.Open(archiveDB)
		if err != nil {
			return err
		}
		defer arc.Close()
		id, err := arc.SaveDataset(cmd.Context(), ds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived dataset %d (%d channels)\n", id, ds.Len())
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived datasets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		arc, err := storage.Open(archiveDB)
		if err != nil {
			return err
		}
		defer arc.Close()
		recs, err := arc.ListDatasets(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tFORMAT\tSIZE\tDURATION\tCHANNELS")
		for _, rec := range recs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1fs\t%d\n",
				rec.ID, rec.SourcePath, rec.Format,
				humanize.IBytes(uint64(rec.SizeBytes)), rec.Duration, rec.ChannelCount)
		}
		return w.Flush()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and reload when new logs appear",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(args[0]); err != nil {
			return fmt.Errorf("watching %s: %w", args[0], err)
		}

		mgr := pipeline.NewManager(pipeline.NewLoader(cfg))
		common.Logf("watching %s", args[0])
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !watchableExt(ev.Name) {
					continue
				}
				ds, err := mgr.Load(ctx, ev.Name)
				if err != nil {
					common.Logf("reload %s failed: %v", ev.Name, err)
					continue
				}
				printInfo(cmd, ds)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				common.Logf("watch error: %v", err)
			}
		}
	},
}

func init() {
	channelsCmd.Flags().StringVarP(&channelsGroup, "group", "g", "",
		"only show channels in this group")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "",
		"output PDF path (defaults to the source path with a .pdf extension)")
	archiveCmd.PersistentFlags().StringVar(&archiveDB, "db", "flights.db",
		"archive database file")
	archiveCmd.AddCommand(archiveSaveCmd, archiveListCmd)
}

func loadDataset(ctx context.Context, path string) (*logdata.LogDataset, error) {
	loader := pipeline.NewLoader(cfg)
	if showProgress {
		m := common.NewMetrics()
		loader.Metrics = m
		stop := common.StartProgressPrinter(os.Stderr, m, 500*time.Millisecond)
		defer stop()
	}
	return loader.Load(ctx, path)
}

func watchableExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tlog", ".bin", ".log":
		return true
	}
	return false
}

func printInfo(cmd *cobra.Command, ds *logdata.LogDataset) {
	meta := ds.Meta
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:          %s\n", meta.SourcePath)
	fmt.Fprintf(out, "Format:        %s\n", meta.Format)
	fmt.Fprintf(out, "Size:          %s\n", humanize.IBytes(uint64(meta.SizeBytes)))
	fmt.Fprintf(out, "Duration:      %.1f s\n", meta.Duration)
	fmt.Fprintf(out, "Sample rate:   %.1f Hz\n", meta.SampleRate)
	fmt.Fprintf(out, "Channels:      %d in %d groups\n", ds.Len(), len(ds.Groups()))
	fmt.Fprintf(out, "Skipped:       %d records\n", meta.SkippedRecords)
	if meta.SyntheticTime {
		fmt.Fprintln(out, "Time axis:     synthetic (1 Hz)")
	}
	if len(meta.TypesImported) > 0 {
		fmt.Fprintf(out, "Imported:      %s\n", strings.Join(meta.TypesImported, ", "))
	}
	if len(meta.TypesSeen) > 0 {
		names := make([]string, 0, len(meta.TypesSeen))
		for name := range meta.TypesSeen {
			names = append(names, name)
		}
		sort.Strings(names)
		var parts []string
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s×%d", name, meta.TypesSeen[name]))
		}
		fmt.Fprintf(out, "Seen:          %s\n", strings.Join(parts, " "))
	}
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
