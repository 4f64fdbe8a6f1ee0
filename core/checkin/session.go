package checkin

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/clubhub/core"
)

// runningTimers counts the tickers of all open sessions.
var runningTimers = expvar.NewInt("checkin_timers")

func RunningTimers() int64 { return runningTimers.Value() }

type State string

const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateOpen    State = "open"
)

// EnvStatus tells whether the variants of an environment can be displayed.
type EnvStatus string

const (
	EnvPending     EnvStatus = "pending"
	EnvReady       EnvStatus = "ready"
	EnvUnavailable EnvStatus = "unavailable"
)

// Deps are the collaborators of a Session.
// Clipboard and Downloader may be nil; copy and download then only log.
type Deps struct {
	Encoder    Encoder
	Clipboard  Clipboard
	Downloader Downloader
	Logger     core.Logger
	Clock      clock.Clock
}

// Snapshot is an immutable view of a Session.
type Snapshot struct {
	ID                string                    `json:"id"`
	EventID           string                    `json:"event_id"`
	EventName         string                    `json:"event_name"`
	State             State                     `json:"state"`
	ActiveEnvironment Environment               `json:"active_environment"`
	Links             map[Environment]string    `json:"links"`
	Environments      map[Environment]EnvStatus `json:"environments"`
	DisplayedIndex    int                       `json:"displayed_index"`
	CountdownSeconds  int                       `json:"countdown_seconds"`
	Fading            bool                      `json:"fading"`
	OpenedAt          time.Time                 `json:"opened_at,omitempty"`
}

// Session is one check-in QR issuance surface.
// Everything it displays derives from the instant it became open, so rotation never
// depends on the ticker, which only pushes updates to subscribers.
type Session struct {
	id       string
	target   Target
	settings Settings
	deps     Deps

	mu        sync.Mutex
	state     State
	links     map[Environment]string
	variants  map[Environment][]Image
	status    map[Environment]EnvStatus
	activeEnv Environment
	openedAt  time.Time
	ticker    *clock.Ticker
	stop      chan struct{}
	cancel    context.CancelFunc
	subs      []chan Snapshot
	done      chan struct{}
}

// Open starts a session for `target`: links are built right away, every variant is
// rendered in the background and the session turns open once all of them settled.
// `ctx` bounds the rendering work, Close cancels it.
func Open(ctx context.Context, target Target, settings Settings, deps Deps) *Session {
	deps = withDefaults(deps)
	if settings.Links == nil {
		settings.Links = DefaultSettings().Links
	}
	if settings.RotationInterval <= 0 {
		settings.RotationInterval = DefaultSettings().RotationInterval
	}
	if settings.TickInterval <= 0 {
		settings.TickInterval = time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        uuid.New().String(),
		target:    target,
		settings:  settings,
		deps:      deps,
		state:     StateOpening,
		links:     BuildLinks(settings.Links, target.CheckInCode),
		variants:  make(map[Environment][]Image, len(Environments)),
		status:    make(map[Environment]EnvStatus, len(Environments)),
		activeEnv: EnvProd,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, env := range Environments {
		s.status[env] = EnvPending
	}

	go s.generate(ctx)
	return s
}

func withDefaults(deps Deps) Deps {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	return deps
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Target() Target        { return s.target }
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the rendering started by Open has settled.
func (s *Session) Wait() { <-s.done }

type envResult struct {
	env    Environment
	images []Image
	err    error
}

func (s *Session) generate(ctx context.Context) {
	defer close(s.done)

	results := make(chan envResult, len(Environments))
	var wg sync.WaitGroup
	for _, env := range Environments {
		link, ok := s.links[env]
		if !ok {
			results <- envResult{env: env, err: errors.Errorf("no link template for %q", env)}
			continue
		}
		wg.Add(1)
		go func(env Environment, link string) {
			defer wg.Done()
			images, err := s.renderVariants(ctx, link)
			results <- envResult{env: env, images: images, err: err}
		}(env, link)
	}
	wg.Wait()
	close(results)

	rendered := make(map[Environment][]Image, len(Environments))
	for res := range results {
		if res.err != nil {
			s.deps.Logger.Warn(
				fmt.Sprintf("checkin: rendering %s variants of event %s failed", res.env, s.target.EventID),
				errors.Wrap(res.err, "rendering variants"),
			)
			continue
		}
		rendered[res.env] = res.images
	}
	s.commit(rendered)
}

// renderVariants renders all StylePresets of `link` concurrently; all of them or none.
func (s *Session) renderVariants(ctx context.Context, link string) ([]Image, error) {
	images := make([]Image, len(StylePresets))
	g, gctx := errgroup.WithContext(ctx)
	for i, preset := range StylePresets {
		i, preset := i, preset
		g.Go(func() error {
			img, err := s.encode(gctx, link, preset)
			if err != nil {
				return errors.Wrapf(err, "encoding %s variant", preset.Name)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// encode never outlives its context, even if the Encoder does not watch it.
func (s *Session) encode(ctx context.Context, link string, preset StylePreset) (Image, error) {
	if s.deps.Encoder == nil {
		return Image{}, errors.New("no encoder")
	}
	if s.settings.EncodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.EncodeTimeout)
		defer cancel()
	}

	type result struct {
		img Image
		err error
	}
	resc := make(chan result, 1)
	go func() {
		img, err := s.deps.Encoder.Encode(ctx, link, preset.EncodeOptions())
		resc <- result{img, err}
	}()

	select {
	case res := <-resc:
		if res.err != nil {
			return Image{}, res.err
		}
		res.img.Content = link
		res.img.Preset = preset.Name
		return res.img, nil
	case <-ctx.Done():
		return Image{}, ctx.Err()
	}
}

func (s *Session) commit(rendered map[Environment][]Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// closed while rendering: drop the results
	if s.state == StateClosed {
		return
	}

	for _, env := range Environments {
		if images, ok := rendered[env]; ok {
			s.variants[env] = images
			s.status[env] = EnvReady
		} else {
			s.status[env] = EnvUnavailable
		}
	}
	s.state = StateOpen
	s.openedAt = s.deps.Clock.Now()

	s.ticker = s.deps.Clock.Ticker(s.settings.TickInterval)
	s.stop = make(chan struct{})
	runningTimers.Add(1)
	go s.run(s.ticker, s.stop)

	s.publishLocked()
}

func (s *Session) run(ticker *clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateOpen {
				s.publishLocked()
			}
			s.mu.Unlock()
		}
	}
}

// publishLocked pushes the latest Snapshot to every subscriber, replacing any unread one.
func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked(s.deps.Clock.Now())
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving a Snapshot on every tick while the session is open.
// The channel is closed when the session closes.
func (s *Session) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Close tears the session down: rendering is cancelled, the ticker stopped and
// subscribers released. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.cancel()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.ticker = nil
		runningTimers.Add(-1)
	}
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.variants = make(map[Environment][]Image)
}

// activeTimers returns the number of tickers held by the session.
func (s *Session) activeTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return 1
	}
	return 0
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.deps.Clock.Now())
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		ID:                s.id,
		EventID:           s.target.EventID,
		EventName:         s.target.EventName,
		State:             s.state,
		ActiveEnvironment: s.activeEnv,
		Links:             make(map[Environment]string, len(s.links)),
		Environments:      make(map[Environment]EnvStatus, len(s.status)),
	}
	for env, link := range s.links {
		snap.Links[env] = link
	}
	for env, st := range s.status {
		snap.Environments[env] = st
	}

	switch s.state {
	case StateOpen:
		snap.OpenedAt = s.openedAt
		snap.DisplayedIndex, snap.CountdownSeconds, snap.Fading = s.phaseAt(now.Sub(s.openedAt))
	case StateOpening:
		snap.CountdownSeconds = int(s.settings.RotationInterval / time.Second)
	}
	return snap
}

// phaseAt derives the displayed variant, the countdown to the next rotation and the
// fade flag from the time elapsed since the session opened.
func (s *Session) phaseAt(elapsed time.Duration) (index, countdown int, fading bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	interval := s.settings.RotationInterval
	rotations := int(elapsed / interval)
	sinceRotation := elapsed - time.Duration(rotations)*interval
	remaining := interval - sinceRotation

	index = rotations % len(StylePresets)
	countdown = int((remaining + time.Second - 1) / time.Second)
	fading = rotations > 0 && sinceRotation < s.settings.FadeDuration
	return index, countdown, fading
}

// SelectEnvironment switches the active link family. Nothing is regenerated.
func (s *Session) SelectEnvironment(env Environment) error {
	if !env.Valid() {
		return ErrUnknownEnvironment
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeEnv = env
	return nil
}

func (s *Session) ActiveEnvironment() Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeEnv
}

// Link returns the check-in link of `env`.
func (s *Session) Link(env Environment) (string, bool) {
	link, ok := s.links[env]
	return link, ok
}

// Variants returns the rendered variants of `env`, nil if there are none.
func (s *Session) Variants(env Environment) []Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := s.variants[env]
	if images == nil {
		return nil
	}
	res := make([]Image, len(images))
	copy(res, images)
	return res
}

// CopyLink writes the link of `env` to the clipboard and returns it.
// A clipboard failure is only logged.
func (s *Session) CopyLink(env Environment) string {
	link, ok := s.links[env]
	if !ok {
		return ""
	}
	if s.deps.Clipboard == nil {
		s.deps.Logger.Debug("checkin: no clipboard to copy to")
		return link
	}
	if err := s.deps.Clipboard.WriteAll(link); err != nil {
		s.deps.Logger.Warn("checkin: copying link failed", errors.Wrap(err, "writing to clipboard"))
	}
	return link
}

// CurrentImage returns the displayed variant of `env` and the file name to save it as.
func (s *Session) CurrentImage(env Environment) (Image, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	images := s.variants[env]
	if s.state != StateOpen || len(images) == 0 {
		return Image{}, "", false
	}
	now := s.deps.Clock.Now()
	idx, _, _ := s.phaseAt(now.Sub(s.openedAt))
	if idx >= len(images) {
		return Image{}, "", false
	}
	name := fmt.Sprintf("checkin-%s-%s-%d.png", s.target.EventID, env, now.UnixMilli())
	return images[idx], name, true
}

// DownloadImage saves the displayed variant of `env` and returns the file name,
// or "" when there was nothing to save or saving failed.
func (s *Session) DownloadImage(env Environment) string {
	img, name, ok := s.CurrentImage(env)
	if !ok {
		s.deps.Logger.Debug(fmt.Sprintf("checkin: no %s image to download", env))
		return ""
	}
	if s.deps.Downloader == nil {
		s.deps.Logger.Debug("checkin: no downloader to save to")
		return ""
	}
	if err := s.deps.Downloader.Save(name, img.PNG); err != nil {
		s.deps.Logger.Warn("checkin: downloading image failed", errors.Wrap(err, "saving "+name))
		return ""
	}
	return name
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
