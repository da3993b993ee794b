package main

import (
	"example.com/flightlog/internal/common"
	"example.com/flightlog/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	logFile      string
	showProgress bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "fltlog",
		Short: "RC flight log decoder and inspector",
		Long: `fltlog decodes RC flight logs (FrSky/OpenTX CSV, MAVLink .tlog captures
and Ardupilot dataflash .bin logs) into a canonical channel set.

Examples:
  fltlog info flight.tlog                 # detect, decode and summarize
  fltlog channels flight.csv --group GPS  # list channels with statistics
  fltlog report flight.bin -o flight.pdf  # render a PDF flight summary
  fltlog archive save flight.tlog         # store the dataset in SQLite
  fltlog watch ./logs                     # reload on new files in a directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != "" {
				common.UseLogFile(logFile)
			}
			var err error
			if configPath != "" {
				cfg, err = config.Load(configPath)
			} else {
				cfg = config.Default()
			}
			return err
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"mapping configuration file (JSON or YAML); built-in defaults when omitted")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also write logs to this rotating file")
	rootCmd.PersistentFlags().BoolVar(&showProgress, "progress", false,
		"print a live progress line to stderr while decoding")

	rootCmd.AddCommand(infoCmd, channelsCmd, reportCmd, archiveCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		common.Fatalf("%v", err)
	}
}
