package logging

import (
	"io"
	"log/slog"
)

// Root is the process-wide logger built at startup. It fans out to stdout and,
// when a log directory is configured, to a dated file.
type Root struct {
	Logger
	console *FolioLogger
	outputs []*FolioLogger
	file    *FileLogger
}

// Setup builds the root logger. dir may be empty.
func Setup(level LogLevel, format, dir string, out io.Writer) (*Root, error) {
	console := NewLogger(&LoggerConfig{
		Level:  level,
		Format: format,
		Output: out,
	})

	root := &Root{
		Logger:  console,
		console: console,
		outputs: []*FolioLogger{console},
	}

	if dir == "" {
		return root, nil
	}

	file, err := NewFileLogger(&LoggerConfig{Level: level, Format: "json"}, dir)
	if err != nil {
		return nil, err
	}

	root.file = file
	root.outputs = append(root.outputs, file.FolioLogger)
	root.Logger = NewMultiLogger(console, file)

	return root, nil
}

// SetLevel changes the level of every output.
func (r *Root) SetLevel(level LogLevel) {
	for _, l := range r.outputs {
		l.SetLevel(level)
	}
}

// Slog returns the console slog logger for libraries that take *slog.Logger.
func (r *Root) Slog() *slog.Logger {
	return r.console.Slog()
}

// FilePath returns the path of the file log, or "" when none is configured.
func (r *Root) FilePath() string {
	if r.file == nil {
		return ""
	}
	return r.file.Path()
}

// Close releases the file log.
func (r *Root) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
