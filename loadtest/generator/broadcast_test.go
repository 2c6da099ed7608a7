package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"focusrelay/client/model"
)

func TestRun_ProducesTotalJobs(t *testing.T) {
	g := New(50, 10)
	go g.Run()

	var seq int64
	for job := range g.Output {
		seq++
		require.Equal(t, seq, job.Seq)
		require.Equal(t, model.FrameBroadcast, job.Frame.Type)
		require.Equal(t, job.Channel, job.Frame.Channel)
		require.Contains(t, channels, job.Channel)
		require.NotNil(t, job.Frame.Data)
	}
	require.Equal(t, int64(50), seq)
}
