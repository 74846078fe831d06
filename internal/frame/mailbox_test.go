package frame

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestReader_SuppressesRepeats(t *testing.T) {
	box := NewMailbox()
	r := box.Reader(DefaultDiffThreshold)
	require.NoError(t, r.StartCapture(context.Background()))
	assert.Nil(t, r.TakeSnapshot())

	white := solidPNG(t, color.White)
	_, err := box.Publish(white)
	require.NoError(t, err)
	assert.Equal(t, white, r.TakeSnapshot())
	assert.Nil(t, r.TakeSnapshot(), "same frame twice")

	_, err = box.Publish(solidPNG(t, color.White))
	require.NoError(t, err)
	assert.Nil(t, r.TakeSnapshot(), "visually identical frame")

	black := solidJPEG(t, color.Black)
	_, err = box.Publish(black)
	require.NoError(t, err)
	assert.Equal(t, black, r.TakeSnapshot())
}

func TestReader_IndependentConsumers(t *testing.T) {
	box := NewMailbox()
	loop := box.Reader(DefaultDiffThreshold)
	chat := box.Reader(0)
	require.NoError(t, loop.StartCapture(context.Background()))

	frame := solidPNG(t, color.Gray{Y: 128})
	_, err := box.Publish(frame)
	require.NoError(t, err)

	assert.NotNil(t, loop.TakeSnapshot())
	assert.Nil(t, loop.TakeSnapshot())
	assert.Equal(t, frame, chat.TakeSnapshot())
	assert.Equal(t, frame, chat.TakeSnapshot())
}

func TestMailbox_InactiveAndInvalid(t *testing.T) {
	box := NewMailbox()
	_, err := box.Publish(solidPNG(t, color.White))
	assert.ErrorIs(t, err, ErrInactive)

	box.Activate()
	_, err = box.Publish(nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = box.Publish([]byte("not an image"))
	assert.Error(t, err)

	seq, err := box.Publish(solidPNG(t, color.White))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	r := box.Reader(0)
	r.StopCapture()
	assert.False(t, box.Active())
	assert.Nil(t, r.TakeSnapshot())
}

func TestMailbox_DropsStaleFrames(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	box := NewMailbox(WithMaxAge(time.Second), WithClock(func() time.Time { return now }))
	box.Activate()
	_, err := box.Publish(solidPNG(t, color.White))
	require.NoError(t, err)
	assert.NotNil(t, box.Latest())

	now = now.Add(2 * time.Second)
	assert.Nil(t, box.Latest())
}
