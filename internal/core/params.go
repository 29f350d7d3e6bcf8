package core

import (
	"time"

	"connpulse/config"
	"connpulse/internal/channel"
	"connpulse/internal/codec"
	"connpulse/internal/pool"
)

// ChannelParams is the resolved channel configuration in the form the
// protocol types consume.
type ChannelParams struct {
	Codec    codec.Codec
	MaxSlots int
	Pulse    time.Duration
	Settle   time.Duration
}

// NewChannelParams converts a validated config.Channel.
func NewChannelParams(ch config.Channel) (ChannelParams, error) {
	c, err := ch.Codec()
	if err != nil {
		return ChannelParams{}, err
	}
	return ChannelParams{
		Codec:    c,
		MaxSlots: ch.MaxSlots,
		Pulse:    ch.Pulse(),
		Settle:   ch.Settle(),
	}, nil
}

func (c ChannelParams) agent(p pool.Pool, opts ...channel.AgentOption) *channel.Agent {
	return channel.NewAgent(p, c.MaxSlots, c.Settle, opts...)
}

// parts builds an agent over p together with its scheduler.
func (c ChannelParams) parts(p pool.Pool, opts ...channel.AgentOption) (*channel.Agent, *channel.Scheduler) {
	a := c.agent(p, opts...)
	return a, channel.NewScheduler(a.Clock(), c.Pulse, c.Codec.ListSize())
}

func (c ChannelParams) runner(p pool.Pool, s channel.Strategy, r channel.Rule, payload channel.PayloadFunc, opts ...channel.AgentOption) *channel.Runner {
	a, sched := c.parts(p, opts...)
	return channel.NewRunner(a, sched,
		channel.NewNegotiator(a, r),
		channel.NewTransmitter(a, sched, c.Codec, s),
		channel.NewReceiver(a, sched, c.Codec),
		payload,
	)
}
