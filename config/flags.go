package config

import (
	"flag"
	"log/slog"
	"os"

	"github.com/brensch/pursuit/logging"
	"github.com/brensch/pursuit/search"
)

// SearchFlags are the search settings every command accepts.
type SearchFlags struct {
	mode   *string
	depth  *int
	budget *int64
}

// RegisterSearchFlags adds -mode, -depth and -budget to fs, defaulting to
// SEARCH_MODE, SEARCH_DEPTH and NODE_BUDGET.
func RegisterSearchFlags(fs *flag.FlagSet) *SearchFlags {
	def := search.DefaultConfig()
	return &SearchFlags{
		mode:   fs.String("mode", EnvOrDefault("SEARCH_MODE", def.Mode.String()), "Search mode: alphabeta, minimax or heuristic"),
		depth:  fs.Int("depth", EnvIntOrDefault("SEARCH_DEPTH", def.Depth), "Plies searched below the agent's reply (0 = to terminal states)"),
		budget: fs.Int64("budget", EnvInt64OrDefault("NODE_BUDGET", def.NodeBudget), "Maximum nodes per decision (0 = unlimited)"),
	}
}

func (f *SearchFlags) Config(logger *slog.Logger) (search.Config, error) {
	mode, err := search.ParseMode(*f.mode)
	if err != nil {
		return search.Config{}, err
	}
	return search.Config{
		Mode:       mode,
		Depth:      *f.depth,
		NodeBudget: *f.budget,
		Logger:     logger,
	}, nil
}

type LogFlags struct {
	format *string
	level  *string
}

// RegisterLogFlags adds -log-format and -log-level to fs, defaulting to
// LOG_FORMAT and LOG_LEVEL.
func RegisterLogFlags(fs *flag.FlagSet) *LogFlags {
	return &LogFlags{
		format: fs.String("log-format", EnvOrDefault("LOG_FORMAT", logging.FormatText), "Log format: text, json or pretty"),
		level:  fs.String("log-level", EnvOrDefault("LOG_LEVEL", "info"), "Log level: debug, info, warn or error"),
	}
}

// Logger builds the logger on stderr and installs it as the slog default.
func (f *LogFlags) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(*f.level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, *f.format, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
