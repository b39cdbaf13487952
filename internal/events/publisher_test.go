package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building-access-service/internal/types"
)

type recordingPublisher struct {
	published []types.EventType
	closed    bool
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType types.EventType, payload interface{}) error {
	p.published = append(p.published, eventType)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return p.err
}

func TestNewMessage(t *testing.T) {
	payload := types.AccessEventPayload{DoorID: "door-1", Result: types.ResultSuccess}

	msg, err := NewMessage(types.EventAccessGranted, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, types.EventAccessGranted, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Zero(t, msg.Retries)

	var decoded types.AccessEventPayload
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "door-1", decoded.DoorID)
	assert.Equal(t, types.ResultSuccess, decoded.Result)
}

func TestNewMessageRejectsUnknownType(t *testing.T) {
	_, err := NewMessage("access.teleported", nil)
	assert.Error(t, err)
}

func TestMultiFansOut(t *testing.T) {
	primary := &recordingPublisher{}
	secondary := &recordingPublisher{}
	multi := &Multi{Primary: primary, Secondary: []Publisher{secondary}}

	err := multi.Publish(context.Background(), types.EventDoorOpened, nil)
	require.NoError(t, err)

	assert.Equal(t, []types.EventType{types.EventDoorOpened}, primary.published)
	assert.Equal(t, []types.EventType{types.EventDoorOpened}, secondary.published)
}

func TestMultiPrimaryErrorPropagates(t *testing.T) {
	primary := &recordingPublisher{err: errors.New("bus down")}
	secondary := &recordingPublisher{}
	multi := &Multi{Primary: primary, Secondary: []Publisher{secondary}}

	err := multi.Publish(context.Background(), types.EventDoorOpened, nil)
	assert.Error(t, err)

	// Secondary publishers still receive the event
	assert.Len(t, secondary.published, 1)
}

func TestMultiSecondaryErrorIgnored(t *testing.T) {
	primary := &recordingPublisher{}
	secondary := &recordingPublisher{err: errors.New("socket closed")}
	multi := &Multi{Primary: primary, Secondary: []Publisher{secondary}}

	err := multi.Publish(context.Background(), types.EventAccessDenied, nil)
	assert.NoError(t, err)
}

func TestMultiClose(t *testing.T) {
	primary := &recordingPublisher{}
	secondary := &recordingPublisher{}
	multi := &Multi{Primary: primary, Secondary: []Publisher{secondary}}

	require.NoError(t, multi.Close())
	assert.True(t, primary.closed)
	assert.True(t, secondary.closed)
}
