package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"connpulse/internal/channel"
	cperr "connpulse/internal/errors"
	"connpulse/util"
)

var validate = validator.New()

// flagNames maps Channel fields to the CLI flag that overrides them.
var flagNames = map[string]string{
	"ListSize":   "list-size",
	"MaxSlots":   "max-slots",
	"MaxValue":   "max-value",
	"PulseMs":    "pulse-ms",
	"SettlingMs": "settling-ms",
}

// Validate checks for contradictory or missing settings and returns a
// *ConfigError with a hint for the first problem found.
func (c *Config) Validate() error {
	if err := c.validateChannel(); err != nil {
		return err
	}

	switch c.Mode {
	case ModeAuto, ModeManual, ModeServe:
	default:
		return &cperr.ConfigError{Field: "mode", Value: c.Mode,
			Message: "unknown mode", Hint: "one of auto, manual, serve"}
	}

	if c.Mode == ModeAuto && c.Cycles < 1 {
		return &cperr.ConfigError{Field: "cycles", Value: c.Cycles,
			Message: "must be at least 1"}
	}

	switch c.Strategy {
	case "direct", "overshoot":
	default:
		return &cperr.ConfigError{Field: "strategy", Value: c.Strategy,
			Message: "unknown strategy", Hint: "one of direct, overshoot"}
	}
	if c.OvershootMargin < 0 {
		return &cperr.ConfigError{Field: "overshoot-margin", Value: c.OvershootMargin,
			Message: "must not be negative"}
	}

	switch c.Rule {
	case "half", "majority":
	default:
		return &cperr.ConfigError{Field: "rule", Value: c.Rule,
			Message: "unknown negotiation rule", Hint: "one of half, majority"}
	}
	if c.Rule == "half" && c.Channel.MaxSlots%2 == 0 {
		return &cperr.ConfigError{Field: "rule", Value: c.Rule,
			Message: fmt.Sprintf("two racers can each hold half of an even max-slots (%d)", c.Channel.MaxSlots),
			Hint:    "use an odd --max-slots or --rule majority"}
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	if c.Mode == ModeServe {
		if c.ListenPort < 1 || c.ListenPort > 65535 {
			return &cperr.ConfigError{Field: "listen-port", Value: c.ListenPort,
				Message: "serve mode needs a port in 1-65535"}
		}
		if c.MaxConns < 1 {
			return &cperr.ConfigError{Field: "max-conns", Value: c.MaxConns,
				Message: "must be at least 1"}
		}
	}

	if c.JumpEnabled && c.Backend != BackendTCP && c.Backend != BackendRedis {
		return &cperr.ConfigError{Field: "jump", Value: c.JumpSpec,
			Message: "a jump host only applies to network backends",
			Hint:    "use --pool tcp or --pool redis"}
	}
	if c.StrictHostKey && !c.JumpEnabled {
		return &cperr.ConfigError{Field: "strict-hostkey",
			Message: "requires --jump"}
	}
	return nil
}

func (c *Config) validateChannel() error {
	ch := c.Channel
	if err := validate.Struct(ch); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &cperr.ConfigError{
				Field:   flagNames[fe.StructField()],
				Value:   fe.Value(),
				Message: fmt.Sprintf("fails %s=%s", fe.Tag(), fe.Param()),
			}
		}
		return err
	}

	if ch.MaxValue > ch.MaxSlots {
		return &cperr.ConfigError{
			Field:   "max-value",
			Value:   ch.MaxValue,
			Message: fmt.Sprintf("exceeds max-slots (%d)", ch.MaxSlots),
			Hint:    "every digit needs max-value free slots",
		}
	}

	if _, err := ch.Codec(); err != nil {
		return &cperr.ConfigError{
			Field:   "list-size",
			Value:   ch.ListSize,
			Message: err.Error(),
			Hint:    "max-value^list-size must fit in 64 bits",
		}
	}

	// An unknown strategy is reported by Validate itself.
	if s, err := channel.ParseStrategy(c.Strategy, c.OvershootMargin); err == nil {
		steps := channel.PulseSettles(s)
		if ch.Settle()*time.Duration(steps) >= ch.Pulse() {
			return &cperr.ConfigError{
				Field:   "settling-ms",
				Value:   ch.SettlingMs,
				Message: fmt.Sprintf("%d x settling must stay below pulse (%dms)", steps, ch.PulseMs),
				Hint:    "raise --pulse-ms or lower --settling-ms",
			}
		}
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend {
	case BackendMemory:
	case BackendTCP:
		if c.Mode != ModeServe && (c.Host == "" || c.Port < 1 || c.Port > 65535) {
			return &cperr.ConfigError{Field: "pool", Value: c.Backend,
				Message: "tcp backend needs host and port",
				Hint:    "connpulse --pool tcp <host> <port>"}
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return &cperr.ConfigError{Field: "redis-addr",
				Message: "required with --pool redis"}
		}
		if _, _, err := util.ParseHostPort(c.RedisAddr, DefaultRedisPort); err != nil {
			return &cperr.ConfigError{Field: "redis-addr", Value: c.RedisAddr,
				Message: err.Error(), Hint: "host[:port]"}
		}
	default:
		return &cperr.ConfigError{Field: "pool", Value: c.Backend,
			Message: "unknown backend", Hint: "one of memory, tcp, redis"}
	}
	if c.DialRate < 0 {
		return &cperr.ConfigError{Field: "dial-rate", Value: c.DialRate,
			Message: "must not be negative"}
	}
	return nil
}
