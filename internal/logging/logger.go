// Package logging defines the logging facade the rest of the module
// depends on, so swapping the backing handler never touches call sites.
package logging

import "log/slog"

// Service is the collaborator interface components log through: four
// leveled methods plus an optional structured extras map.
type Service interface {
	Debug(msg string, extra map[string]any)
	Info(msg string, extra map[string]any)
	Warning(msg string, extra map[string]any)
	Error(msg string, extra map[string]any)
}

// SlogService implements Service on top of log/slog, the handler the
// rest of this module's ambient stack already uses.
type SlogService struct {
	logger *slog.Logger
}

// NewSlogService wraps the given slog.Logger, or slog.Default() if nil.
func NewSlogService(logger *slog.Logger) *SlogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogService{logger: logger}
}

func attrs(extra map[string]any) []any {
	out := make([]any, 0, len(extra)*2)
	for k, v := range extra {
		out = append(out, k, v)
	}
	return out
}

func (s *SlogService) Debug(msg string, extra map[string]any) {
	s.logger.Debug(msg, attrs(extra)...)
}

func (s *SlogService) Info(msg string, extra map[string]any) {
	s.logger.Info(msg, attrs(extra)...)
}

func (s *SlogService) Warning(msg string, extra map[string]any) {
	s.logger.Warn(msg, attrs(extra)...)
}

func (s *SlogService) Error(msg string, extra map[string]any) {
	s.logger.Error(msg, attrs(extra)...)
}
