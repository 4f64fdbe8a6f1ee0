package checkin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errEncoder = errors.New("encoder exploded")

type fakeEncoder struct {
	mu    sync.Mutex
	calls int

	fail     func(content string) error
	block    chan struct{} // when set, Encode waits for it to be closed
	honorCtx bool
}

func (enc *fakeEncoder) Encode(ctx context.Context, content string, opts EncodeOptions) (Image, error) {
	enc.mu.Lock()
	enc.calls++
	enc.mu.Unlock()

	if enc.block != nil {
		if enc.honorCtx {
			select {
			case <-enc.block:
			case <-ctx.Done():
				return Image{}, ctx.Err()
			}
		} else {
			<-enc.block
		}
	}
	if enc.fail != nil {
		if err := enc.fail(content); err != nil {
			return Image{}, err
		}
	}
	png := fmt.Sprintf("%s|%s|%d|%d", content, opts.Dark, opts.Margin, opts.Width)
	return Image{Content: content, PNG: []byte(png)}, nil
}

func (enc *fakeEncoder) Calls() int {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return enc.calls
}

type fakeClipboard struct {
	last string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.last = text
	return nil
}

type fakeDownloader struct {
	files map[string][]byte
	err   error
}

func (d *fakeDownloader) Save(name string, data []byte) error {
	if d.err != nil {
		return d.err
	}
	if d.files == nil {
		d.files = make(map[string][]byte)
	}
	d.files[name] = data
	return nil
}

var target = Target{EventID: "ev1", EventName: "Robotics Night", CheckInCode: "K7QX 2MZP"}

func openSession(t *testing.T, enc Encoder, mutate ...func(*Settings, *Deps)) (*Session, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	settings := DefaultSettings()
	deps := Deps{Encoder: enc, Clock: mock}
	for _, m := range mutate {
		m(&settings, &deps)
	}
	s := Open(context.Background(), target, settings, deps)
	t.Cleanup(s.Close)
	return s, mock
}

func TestSession_Open(t *testing.T) {
	enc := new(fakeEncoder)
	s, _ := openSession(t, enc)

	links := s.Snapshot().Links
	assert.Equal(t, map[Environment]string{
		EnvLocal:  "http://localhost:3000/check-in?code=K7QX+2MZP",
		EnvProd:   "https://clubs.example.edu/check-in?code=K7QX+2MZP",
		EnvMobile: "clubhub://check-in?code=K7QX+2MZP",
	}, links)

	s.Wait()
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, len(Environments)*len(StylePresets), enc.Calls())

	snap := s.Snapshot()
	assert.Equal(t, "ev1", snap.EventID)
	assert.Equal(t, EnvProd, snap.ActiveEnvironment)
	for _, env := range Environments {
		assert.Equal(t, EnvReady, snap.Environments[env], env)

		variants := s.Variants(env)
		require.Len(t, variants, len(StylePresets), env)
		for i, img := range variants {
			assert.Equal(t, links[env], img.Content, "all variants encode the same link")
			assert.Equal(t, StylePresets[i].Name, img.Preset)
			assert.True(t, strings.HasPrefix(img.DataURL(), "data:image/png;base64,"))
		}
		assert.NotEqual(t, variants[0].PNG, variants[1].PNG)
		assert.NotEqual(t, variants[1].PNG, variants[2].PNG)
	}
}

func TestSession_Rotation(t *testing.T) {
	s, mock := openSession(t, new(fakeEncoder))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.DisplayedIndex)
	assert.Equal(t, 15, snap.CountdownSeconds)
	assert.False(t, snap.Fading, "no fade before the first rotation")

	// countdown ticks down without moving the displayed variant
	for want := 14; want >= 1; want-- {
		mock.Add(time.Second)
		snap = s.Snapshot()
		assert.Equal(t, want, snap.CountdownSeconds)
		assert.Equal(t, 0, snap.DisplayedIndex)
	}

	// 0 -> 1 -> 2 -> 0 ... never skipping a value
	mock.Add(time.Second)
	for i := 1; i <= 12; i++ {
		snap = s.Snapshot()
		assert.Equal(t, i%3, snap.DisplayedIndex, "rotation %d", i)
		assert.Equal(t, 15, snap.CountdownSeconds, "rotation %d", i)
		assert.True(t, snap.Fading, "rotation %d", i)

		mock.Add(299 * time.Millisecond)
		assert.True(t, s.Snapshot().Fading)
		mock.Add(time.Millisecond)
		assert.False(t, s.Snapshot().Fading)

		mock.Add(15*time.Second - 300*time.Millisecond)
	}
}

func TestSession_Timers(t *testing.T) {
	base := RunningTimers()

	for cycle := 0; cycle < 5; cycle++ {
		block := make(chan struct{})
		s, _ := openSession(t, &fakeEncoder{block: block})

		assert.Equal(t, 0, s.activeTimers(), "no timer while opening")
		close(block)
		s.Wait()
		assert.Equal(t, 1, s.activeTimers())
		assert.Equal(t, base+1, RunningTimers())

		s.Close()
		assert.Equal(t, 0, s.activeTimers())
		assert.Equal(t, base, RunningTimers())

		s.Close() // idempotent
		assert.Equal(t, base, RunningTimers())
	}
}

func TestSession_FailureIsolation(t *testing.T) {
	enc := &fakeEncoder{fail: func(content string) error {
		if strings.HasPrefix(content, "clubhub://") {
			return errEncoder
		}
		return nil
	}}
	s, _ := openSession(t, enc, func(_ *Settings, deps *Deps) {
		deps.Downloader = new(fakeDownloader)
	})
	s.Wait()

	assert.Equal(t, StateOpen, s.State())
	snap := s.Snapshot()
	assert.Equal(t, EnvReady, snap.Environments[EnvLocal])
	assert.Equal(t, EnvReady, snap.Environments[EnvProd])
	assert.Equal(t, EnvUnavailable, snap.Environments[EnvMobile])

	assert.Len(t, s.Variants(EnvLocal), 3)
	assert.Len(t, s.Variants(EnvProd), 3)
	assert.Nil(t, s.Variants(EnvMobile))

	_, _, ok := s.CurrentImage(EnvMobile)
	assert.False(t, ok)
	assert.Equal(t, "", s.DownloadImage(EnvMobile))
	assert.NotEqual(t, "", s.DownloadImage(EnvProd))
}

func TestSession_EncoderFailsEverywhere(t *testing.T) {
	enc := &fakeEncoder{fail: func(string) error { return errEncoder }}
	s, _ := openSession(t, enc)
	s.Wait()

	assert.Equal(t, StateOpen, s.State(), "a failed opening still opens, without images")
	for _, env := range Environments {
		assert.Equal(t, EnvUnavailable, s.Snapshot().Environments[env])
	}
	assert.Equal(t, "", s.DownloadImage(EnvProd))
}

func TestSession_CloseWhileOpening(t *testing.T) {
	block := make(chan struct{})
	s, mock := openSession(t, &fakeEncoder{block: block})

	s.Close()
	close(block) // let the pending encodes resolve after close
	s.Wait()

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, s.activeTimers())
	for _, env := range Environments {
		assert.Nil(t, s.Variants(env))
		_, _, ok := s.CurrentImage(env)
		assert.False(t, ok)
	}

	mock.Add(time.Minute)
	snap := s.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.DisplayedIndex)
}

func TestSession_EncodeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	// the encoder ignores its context: the session must not hang anyway
	s, _ := openSession(t, &fakeEncoder{block: block}, func(settings *Settings, _ *Deps) {
		settings.EncodeTimeout = 20 * time.Millisecond
	})

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("opening did not settle after the encode timeout")
	}
	assert.Equal(t, StateOpen, s.State())
	for _, env := range Environments {
		assert.Equal(t, EnvUnavailable, s.Snapshot().Environments[env])
	}
}

func TestSession_SelectEnvironment(t *testing.T) {
	enc := new(fakeEncoder)
	s, _ := openSession(t, enc)
	s.Wait()
	calls := enc.Calls()

	assert.Equal(t, EnvProd, s.ActiveEnvironment())
	require.NoError(t, s.SelectEnvironment(EnvMobile))
	assert.Equal(t, EnvMobile, s.Snapshot().ActiveEnvironment)
	assert.Equal(t, calls, enc.Calls(), "switching environment does not regenerate")

	assert.ErrorIs(t, s.SelectEnvironment("staging"), ErrUnknownEnvironment)
	assert.Equal(t, EnvMobile, s.ActiveEnvironment())
}

func TestSession_CopyLink(t *testing.T) {
	cb := new(fakeClipboard)
	s, _ := openSession(t, new(fakeEncoder), func(_ *Settings, deps *Deps) {
		deps.Clipboard = cb
	})

	link := s.CopyLink(EnvMobile)
	assert.Equal(t, "clubhub://check-in?code=K7QX+2MZP", link)
	assert.Equal(t, link, cb.last)

	assert.Equal(t, "", s.CopyLink("staging"))

	cb.err = errors.New("clipboard access denied")
	assert.NotPanics(t, func() {
		assert.Equal(t, "http://localhost:3000/check-in?code=K7QX+2MZP", s.CopyLink(EnvLocal))
	})
	assert.Equal(t, link, cb.last)
}

func TestSession_CopyLinkWithoutClipboard(t *testing.T) {
	s, _ := openSession(t, new(fakeEncoder))
	assert.Equal(t, "https://clubs.example.edu/check-in?code=K7QX+2MZP", s.CopyLink(EnvProd))
}

func TestSession_DownloadImage(t *testing.T) {
	block := make(chan struct{})
	dl := new(fakeDownloader)
	s, mock := openSession(t, &fakeEncoder{block: block}, func(_ *Settings, deps *Deps) {
		deps.Downloader = dl
	})

	assert.Equal(t, "", s.DownloadImage(EnvProd), "nothing to download while opening")
	close(block)
	s.Wait()

	nameRe := regexp.MustCompile(`^checkin-ev1-prod-\d+\.png$`)

	name := s.DownloadImage(EnvProd)
	assert.Regexp(t, nameRe, name)
	assert.Equal(t, s.Variants(EnvProd)[0].PNG, dl.files[name])

	mock.Add(16 * time.Second)
	name = s.DownloadImage(EnvProd)
	assert.Regexp(t, nameRe, name)
	assert.Equal(t, s.Variants(EnvProd)[1].PNG, dl.files[name])

	dl.err = errors.New("download blocked")
	assert.NotPanics(t, func() { assert.Equal(t, "", s.DownloadImage(EnvProd)) })

	s.Close()
	assert.Equal(t, "", s.DownloadImage(EnvProd))
}

func TestSession_DownloadWithoutDownloader(t *testing.T) {
	s, _ := openSession(t, new(fakeEncoder))
	s.Wait()
	assert.Equal(t, "", s.DownloadImage(EnvProd))
}

func TestSession_Subscribe(t *testing.T) {
	block := make(chan struct{})
	s, mock := openSession(t, &fakeEncoder{block: block})

	sub := s.Subscribe()
	close(block)
	s.Wait()

	recv := func() (Snapshot, bool) {
		select {
		case snap, ok := <-sub:
			return snap, ok
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot received")
			return Snapshot{}, false
		}
	}

	snap, ok := recv()
	require.True(t, ok)
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 15, snap.CountdownSeconds)

	mock.Add(time.Second)
	snap, ok = recv()
	require.True(t, ok)
	assert.Equal(t, 14, snap.CountdownSeconds)

	s.Close()
	for {
		if _, ok = recv(); !ok {
			break
		}
	}

	_, ok = <-s.Subscribe()
	assert.False(t, ok, "subscribing to a closed session returns a closed channel")
}

func TestSession_NoEncoder(t *testing.T) {
	s, _ := openSession(t, nil)
	s.Wait()
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, EnvUnavailable, s.Snapshot().Environments[EnvLocal])
}

func TestSession_phaseAt(t *testing.T) {
	s := &Session{settings: DefaultSettings()}

	tests := []struct {
		elapsed       time.Duration
		wantIndex     int
		wantCountdown int
		wantFading    bool
	}{
		{elapsed: -time.Second, wantIndex: 0, wantCountdown: 15},
		{elapsed: 0, wantIndex: 0, wantCountdown: 15},
		{elapsed: 500 * time.Millisecond, wantIndex: 0, wantCountdown: 15},
		{elapsed: time.Second, wantIndex: 0, wantCountdown: 14},
		{elapsed: 14*time.Second + 999*time.Millisecond, wantIndex: 0, wantCountdown: 1},
		{elapsed: 15 * time.Second, wantIndex: 1, wantCountdown: 15, wantFading: true},
		{elapsed: 15*time.Second + 299*time.Millisecond, wantIndex: 1, wantCountdown: 15, wantFading: true},
		{elapsed: 15*time.Second + 300*time.Millisecond, wantIndex: 1, wantCountdown: 15},
		{elapsed: 30 * time.Second, wantIndex: 2, wantCountdown: 15, wantFading: true},
		{elapsed: 45 * time.Second, wantIndex: 0, wantCountdown: 15, wantFading: true},
		{elapsed: 59 * time.Second, wantIndex: 0, wantCountdown: 1},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			idx, countdown, fading := s.phaseAt(tt.elapsed)
			if idx != tt.wantIndex || countdown != tt.wantCountdown || fading != tt.wantFading {
				t.Errorf("phaseAt(%v) = (%d, %d, %v), want (%d, %d, %v)",
					tt.elapsed, idx, countdown, fading, tt.wantIndex, tt.wantCountdown, tt.wantFading)
			}
		})
	}
}
