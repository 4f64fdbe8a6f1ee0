// Package checkin issues rotating check-in QR codes for an event.
//
// A Session turns a stable check-in code into three families of links (local, prod and
// mobile deep link), pre-renders every style variant of each link, then rotates the
// displayed variant on a fixed cadence. Rotation only changes the presentation: all
// variants of a family encode the same destination.
package checkin

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/trezcool/clubhub/core"
)

var (
	ErrUnknownEnvironment = errors.New("unknown environment")
	ErrSessionNotFound    = errors.New("check-in session not found")
)

// Environment selects which base URL a check-in link is built from.
type Environment string

const (
	EnvLocal  Environment = "local"
	EnvProd   Environment = "prod"
	EnvMobile Environment = "mobile"
)

var Environments = []Environment{EnvLocal, EnvProd, EnvMobile}

func (env Environment) Valid() bool {
	switch env {
	case EnvLocal, EnvProd, EnvMobile:
		return true
	}
	return false
}

func ParseEnvironment(s string) (Environment, error) {
	env := Environment(core.CleanString(s, true /* lower */))
	if !env.Valid() {
		return "", ErrUnknownEnvironment
	}
	return env, nil
}

// StylePreset is the look of one QR variant.
type StylePreset struct {
	Name   string
	Dark   string
	Light  string
	Margin int
}

// StylePresets are the variants rendered for each environment, in rotation order.
var StylePresets = []StylePreset{
	{Name: "ink", Dark: "#000000", Light: "#ffffff", Margin: 1},
	{Name: "graphite", Dark: "#111111", Light: "#ffffff", Margin: 2},
	{Name: "charcoal", Dark: "#222222", Light: "#ffffff", Margin: 0},
}

const VariantWidth = 300

// EncodeOptions are the rendering parameters of one QR image.
type EncodeOptions struct {
	Width  int
	Margin int // in modules
	Dark   string
	Light  string
}

func (p StylePreset) EncodeOptions() EncodeOptions {
	return EncodeOptions{Width: VariantWidth, Margin: p.Margin, Dark: p.Dark, Light: p.Light}
}

// Image is one rendered QR variant.
type Image struct {
	Content string
	Preset  string
	PNG     []byte
}

// DataURL returns the image as a base64 "data:" URL.
func (img Image) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG)
}

type (
	// Encoder renders `content` as a QR image. It must support concurrent calls.
	Encoder interface {
		Encode(ctx context.Context, content string, opts EncodeOptions) (Image, error)
	}

	// Clipboard is a write-only sink for copied links.
	Clipboard interface {
		WriteAll(text string) error
	}

	// Downloader saves a named file.
	Downloader interface {
		Save(name string, data []byte) error
	}
)

// LinkTemplates maps each Environment to a URL template holding one "%s" placeholder for the check-in code.
type LinkTemplates map[Environment]string

const codePlaceholder = "%s"

// BuildLinks renders the check-in links of `code` for all environments.
func BuildLinks(templates LinkTemplates, code string) map[Environment]string {
	escaped := url.QueryEscape(code)
	links := make(map[Environment]string, len(Environments))
	for _, env := range Environments {
		tmpl, ok := templates[env]
		if !ok {
			continue
		}
		if strings.Contains(tmpl, codePlaceholder) {
			links[env] = strings.Replace(tmpl, codePlaceholder, escaped, 1)
		} else {
			links[env] = tmpl + escaped
		}
	}
	return links
}

// Settings tune a Session.
type Settings struct {
	Links            LinkTemplates
	RotationInterval time.Duration
	FadeDuration     time.Duration
	TickInterval     time.Duration
	EncodeTimeout    time.Duration // 0: no timeout
	IdleTimeout      time.Duration // Registry only; 0: sessions live until closed
}

func DefaultSettings() Settings {
	return Settings{
		Links: LinkTemplates{
			EnvLocal:  "http://localhost:3000/check-in?code=%s",
			EnvProd:   "https://clubs.example.edu/check-in?code=%s",
			EnvMobile: "clubhub://check-in?code=%s",
		},
		RotationInterval: 15 * time.Second,
		FadeDuration:     300 * time.Millisecond,
		TickInterval:     time.Second,
		EncodeTimeout:    10 * time.Second,
		IdleTimeout:      30 * time.Minute,
	}
}

// SettingsFromConfig builds Settings from the app configuration, falling back to defaults.
func SettingsFromConfig(conf core.CheckInConfig) Settings {
	s := DefaultSettings()
	if conf.LocalURL != "" {
		s.Links[EnvLocal] = conf.LocalURL
	}
	if conf.ProdURL != "" {
		s.Links[EnvProd] = conf.ProdURL
	}
	if conf.MobileURL != "" {
		s.Links[EnvMobile] = conf.MobileURL
	}
	if conf.RotationInterval > 0 {
		s.RotationInterval = conf.RotationInterval
	}
	if conf.FadeDuration > 0 {
		s.FadeDuration = conf.FadeDuration
	}
	if conf.EncodeTimeout > 0 {
		s.EncodeTimeout = conf.EncodeTimeout
	}
	if conf.IdleTimeout > 0 {
		s.IdleTimeout = conf.IdleTimeout
	}
	return s
}

// Target is what a Session is opened for.
type Target struct {
	EventID     string
	EventName   string
	CheckInCode string
}
