package generator

import (
	"fmt"
	"math/rand"
	"time"

	"focusrelay/client/model"
)

var channels = []string{
	model.ChannelMessages,
	model.ChannelTasks,
	model.ChannelFriends,
	model.ChannelVideoCalls,
}

var sampleTexts = []string{
	"Back to work", "Break time", "One more pomodoro", "Almost done",
	"Focus session started", "Task completed", "Need a longer break",
	"Joining the call", "Great session", "See you at the next round",
}

// Job is one broadcast to push through the relay.
type Job struct {
	Seq     int64
	Channel string
	Frame   model.Frame
}

// Generator produces randomized broadcast jobs across the relay channels.
type Generator struct {
	Total  int
	Output chan Job
	rnd    *rand.Rand
}

func New(total int, bufferSize int) *Generator {
	return &Generator{
		Total:  total,
		Output: make(chan Job, bufferSize),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *Generator) Run() {
	defer close(g.Output)

	for i := 0; i < g.Total; i++ {
		seq := int64(i + 1)
		channel := channels[g.rnd.Intn(len(channels))]

		var data any
		switch channel {
		case model.ChannelTasks:
			data = map[string]any{
				"seq":    seq,
				"id":     g.rnd.Intn(100000) + 1,
				"status": "completed",
			}
		case model.ChannelFriends:
			data = map[string]any{
				"seq":       seq,
				"action":    "request_sent",
				"user_id":   g.rnd.Intn(100000) + 1,
				"friend_id": g.rnd.Intn(100000) + 1,
			}
		case model.ChannelVideoCalls:
			data = map[string]any{
				"seq":    seq,
				"type":   "incoming_call",
				"callId": fmt.Sprintf("call-%d", seq),
			}
		default:
			data = map[string]any{
				"seq":     seq,
				"type":    "message_received",
				"message": sampleTexts[g.rnd.Intn(len(sampleTexts))],
			}
		}

		g.Output <- Job{
			Seq:     seq,
			Channel: channel,
			Frame: model.Frame{
				Type:    model.FrameBroadcast,
				Channel: channel,
				Data:    data,
			},
		}
	}
}
