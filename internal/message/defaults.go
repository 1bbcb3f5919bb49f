package message

import (
	"fmt"
	"regexp"
	"time"
)

// Baseline values used for any platform default left unconfigured.
const (
	BaselineAndroidTTL      = "3600s"
	BaselineAndroidPriority = "normal"
	BaselineAndroidColor    = "#f45342"
	BaselineAndroidSound    = "default"
	BaselineAPNSPriority    = "10"
	BaselineAPNSBadge       = 42
	BaselineAPNSSound       = "default"
)

var androidColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// AndroidDefaults are the process-wide Android settings. Empty fields fall
// back to the baseline.
type AndroidDefaults struct {
	TTL      string `yaml:"ttl"`
	Priority string `yaml:"priority"`
	Color    string `yaml:"color"`
	Sound    string `yaml:"sound"`
}

// APNSDefaults are the process-wide iOS settings. A nil Badge falls back to
// the baseline; an explicit zero clears the badge.
type APNSDefaults struct {
	Priority string `yaml:"priority"`
	Badge    *int   `yaml:"badge"`
	Sound    string `yaml:"sound"`
}

// Defaults groups the per-platform settings.
type Defaults struct {
	Android AndroidDefaults `yaml:"android"`
	APNS    APNSDefaults    `yaml:"apns"`
}

// resolved is Defaults with every baseline applied and the TTL parsed.
type resolved struct {
	androidTTL      time.Duration
	androidPriority string
	androidColor    string
	androidSound    string
	apnsPriority    string
	apnsBadge       int
	apnsSound       string
}

// Validate checks the configured values without building anything.
func (d Defaults) Validate() error {
	_, err := d.resolve()
	return err
}

func (d Defaults) resolve() (resolved, error) {
	r := resolved{
		androidPriority: orDefault(d.Android.Priority, BaselineAndroidPriority),
		androidColor:    orDefault(d.Android.Color, BaselineAndroidColor),
		androidSound:    orDefault(d.Android.Sound, BaselineAndroidSound),
		apnsPriority:    orDefault(d.APNS.Priority, BaselineAPNSPriority),
		apnsBadge:       BaselineAPNSBadge,
		apnsSound:       orDefault(d.APNS.Sound, BaselineAPNSSound),
	}
	if d.APNS.Badge != nil {
		r.apnsBadge = *d.APNS.Badge
	}

	ttl, err := time.ParseDuration(orDefault(d.Android.TTL, BaselineAndroidTTL))
	if err != nil {
		return resolved{}, fmt.Errorf("android ttl %q: %w", d.Android.TTL, err)
	}
	if ttl < 0 {
		return resolved{}, fmt.Errorf("android ttl %q must not be negative", d.Android.TTL)
	}
	r.androidTTL = ttl

	if !androidColor.MatchString(r.androidColor) {
		return resolved{}, fmt.Errorf("android color %q must be in #RRGGBB form", r.androidColor)
	}
	switch r.androidPriority {
	case "normal", "high":
	default:
		return resolved{}, fmt.Errorf("android priority %q must be normal or high", r.androidPriority)
	}
	switch r.apnsPriority {
	case "5", "10":
	default:
		return resolved{}, fmt.Errorf("apns priority %q must be 5 or 10", r.apnsPriority)
	}
	if r.apnsBadge < 0 {
		return resolved{}, fmt.Errorf("apns badge %d must not be negative", r.apnsBadge)
	}
	return r, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
