package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mossy-p/voice-broker/internal/agent"
	"github.com/mossy-p/voice-broker/internal/media"
	"github.com/mossy-p/voice-broker/internal/models"
	"github.com/mossy-p/voice-broker/internal/pipeline/pipelinetest"
	"github.com/mossy-p/voice-broker/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsOneCallPerRoom(t *testing.T) {
	kit := pipelinetest.NewKit("", "Welcome to the demo.", make([]byte, 320))
	w := NewWorker(agent.Default(), kit.Builders(), testOpts, zerolog.Nop())
	ctx := context.Background()
	hub := media.NewHub(store.NewMemory(), func(s media.Session) { w.Dispatch(ctx, s) }, zerolog.Nop())

	alice, err := hub.Join(ctx, "r1", media.Participant{ID: "p1", Identity: "Alice", Metadata: `{"agentName":"Ava"}`})
	require.NoError(t, err)
	assert.Equal(t, 1, w.ActiveCalls())

	var greeting models.Event
	require.Eventually(t, func() bool {
		select {
		case out := <-alice.Outbound():
			if out.Binary {
				return false
			}
			var ev models.Event
			if json.Unmarshal(out.Data, &ev) == nil && ev.Type == models.EventTranscript {
				greeting = ev
				return true
			}
		default:
		}
		return false
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "Welcome to the demo.", greeting.Text)
	assert.Equal(t, "r1", greeting.Room)
	assert.Contains(t, kit.Responder.Prompts()[0], "Ava")

	alice.Leave(nil)
	w.Wait()
	assert.Equal(t, 0, w.ActiveCalls())
	assert.Equal(t, 1, kit.VAD.CloseCount())
}

func TestWorker_StopAll(t *testing.T) {
	kit := pipelinetest.NewKit("", "Hello!", nil)
	w := NewWorker(agent.Default(), kit.Builders(), testOpts, zerolog.Nop())

	sess := newFakeSession()
	w.Dispatch(context.Background(), sess)
	require.Equal(t, 1, w.ActiveCalls())

	w.StopAll()
	w.Wait()
	assert.Equal(t, 0, w.ActiveCalls())
}
