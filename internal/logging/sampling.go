package logging

import (
	"go.uber.org/zap/zapcore"
)

// samplingCore gives each level below Error its own sampler. zap keys
// sampler counters by level and message, so a flood of one message (a
// corrupted manifest producing a warning per line, say) does not starve
// the others. Errors and the messages in always bypass sampling.
type samplingCore struct {
	zapcore.Core
	samplers map[zapcore.Level]zapcore.Core
	always   map[string]struct{}
}

func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	samplers := make(map[zapcore.Level]zapcore.Core, len(cfg.Levels))
	for level, rate := range cfg.Levels {
		if level >= zapcore.ErrorLevel || rate.Initial <= 0 {
			continue
		}
		samplers[level] = zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), rate.Initial, rate.Thereafter)
	}

	always := make(map[string]struct{}, len(cfg.Always))
	for _, msg := range cfg.Always {
		always[msg] = struct{}{}
	}

	return &samplingCore{Core: core, samplers: samplers, always: always}
}

func (c *samplingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level < zapcore.ErrorLevel {
		if _, ok := c.always[e.Message]; !ok {
			if s, ok := c.samplers[e.Level]; ok {
				return s.Check(e, ce)
			}
		}
	}
	return c.Core.Check(e, ce)
}

func (c *samplingCore) With(fields []zapcore.Field) zapcore.Core {
	samplers := make(map[zapcore.Level]zapcore.Core, len(c.samplers))
	for level, s := range c.samplers {
		samplers[level] = s.With(fields)
	}
	return &samplingCore{
		Core:     c.Core.With(fields),
		samplers: samplers,
		always:   c.always,
	}
}
