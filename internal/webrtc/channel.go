package webrtc

import (
	"errors"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/beamshare/internal/transfer"
)

// DataChannel adapts a pion data channel to transfer.Channel.
type DataChannel struct {
	dc *pion.DataChannel
}

var _ transfer.Channel = (*DataChannel)(nil)

func NewDataChannel(dc *pion.DataChannel) *DataChannel {
	return &DataChannel{dc: dc}
}

func (c *DataChannel) Open() bool {
	return c.dc.ReadyState() == pion.DataChannelStateOpen
}

func (c *DataChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *DataChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *DataChannel) SendText(s string) error {
	return c.dc.SendText(s)
}

func (c *DataChannel) Label() string {
	return c.dc.Label()
}

// Events are the data channel callbacks a transfer cares about.
type Events struct {
	OnOpen    func()
	OnClose   func()
	OnError   func(error)
	OnMessage func(payload []byte, binary bool)
}

// Bind registers ev on the channel.
func (c *DataChannel) Bind(ev Events) {
	if ev.OnOpen != nil {
		c.dc.OnOpen(ev.OnOpen)
	}
	if ev.OnClose != nil {
		c.dc.OnClose(ev.OnClose)
	}
	if ev.OnError != nil {
		c.dc.OnError(ev.OnError)
	}
	if ev.OnMessage != nil {
		c.dc.OnMessage(func(msg pion.DataChannelMessage) {
			ev.OnMessage(msg.Data, !msg.IsString)
		})
	}
}

// BindReceiver feeds channel messages into r. It resets r when the channel
// closes and aborts it when the channel fails; onEnd then receives the
// error that ended the channel.
func (c *DataChannel) BindReceiver(r *transfer.Receiver, onEnd func(error)) {
	c.Bind(ReceiverEvents(r, onEnd))
}

// ReceiverEvents returns the callbacks BindReceiver registers.
func ReceiverEvents(r *transfer.Receiver, onEnd func(error)) Events {
	end := func(err error) {
		if onEnd != nil {
			onEnd(err)
		}
	}
	return Events{
		OnOpen: r.Open,
		OnClose: func() {
			r.Reset()
			end(transfer.ErrConnectionLost)
		},
		OnError: func(err error) {
			cause := errors.Join(transfer.ErrConnectionLost, err)
			r.Abort(cause)
			end(cause)
		},
		OnMessage: func(payload []byte, binary bool) {
			// Faults are reported through the receiver's OnFault hook.
			_ = r.HandleMessage(payload, binary)
		},
	}
}
