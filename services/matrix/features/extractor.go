// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package features derives contextual signals (device, time of day,
// acquisition channel) from request metadata. The signals feed override
// rules and analytics tagging; none of them affect the core matrix lookup.
package features

import (
	"net/url"
	"strings"
	"time"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// ExtractDeviceInfo pattern-matches a User-Agent string. An empty string
// yields the neutral default {desktop, unknown, other} so non-interactive
// callers always get a usable value.
func ExtractDeviceInfo(userAgent string) datatypes.DeviceInfo {
	if userAgent == "" {
		return datatypes.DeviceInfo{
			Type:    datatypes.DeviceDesktop,
			OS:      datatypes.OSUnknown,
			Browser: datatypes.BrowserOther,
		}
	}

	ua := strings.ToLower(userAgent)

	deviceType := datatypes.DeviceDesktop
	switch {
	case containsAny(ua, "mobile", "android", "iphone", "ipod", "blackberry", "iemobile", "opera mini"):
		deviceType = datatypes.DeviceMobile
	case containsAny(ua, "ipad", "tablet", "playbook", "silk"):
		deviceType = datatypes.DeviceTablet
	}

	os := datatypes.OSUnknown
	switch {
	case containsAny(ua, "iphone", "ipad", "ipod"):
		os = datatypes.OSiOS
	case strings.Contains(ua, "android"):
		os = datatypes.OSAndroid
	case strings.Contains(ua, "mac"):
		os = datatypes.OSMacOS
	case strings.Contains(ua, "win"):
		os = datatypes.OSWindows
	case strings.Contains(ua, "linux"):
		os = datatypes.OSLinux
	}

	browser := datatypes.BrowserOther
	switch {
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edge"):
		browser = datatypes.BrowserChrome
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		browser = datatypes.BrowserSafari
	case strings.Contains(ua, "firefox"):
		browser = datatypes.BrowserFirefox
	case strings.Contains(ua, "edge"):
		browser = datatypes.BrowserEdge
	}

	return datatypes.DeviceInfo{Type: deviceType, OS: os, Browser: browser}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ExtractTimeContext buckets now into the user's timezone. Buckets:
// morning [5,12), afternoon [12,17), evening [17,21), night otherwise.
// An unknown timezone falls back to UTC rather than failing.
func ExtractTimeContext(now time.Time, timezone string) datatypes.TimeContext {
	loc := time.UTC
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}
	local := now.In(loc)

	hour := local.Hour()
	day := int(local.Weekday()) // 0=Sunday .. 6=Saturday

	var bucket datatypes.TimeBucket
	switch {
	case hour >= 5 && hour < 12:
		bucket = datatypes.BucketMorning
	case hour >= 12 && hour < 17:
		bucket = datatypes.BucketAfternoon
	case hour >= 17 && hour < 21:
		bucket = datatypes.BucketEvening
	default:
		bucket = datatypes.BucketNight
	}

	return datatypes.TimeContext{
		HourOfDay: hour,
		DayOfWeek: day,
		Timezone:  loc.String(),
		IsWeekend: day == 0 || day == 6,
		Bucket:    bucket,
	}
}

// searchDomains are referrer hosts classified as search engines.
var searchDomains = []string{"google.", "bing.", "duckduckgo.", "yahoo.", "baidu.", "yandex."}

// socialDomains are referrer hosts classified as social networks.
var socialDomains = []string{"twitter.", "x.com", "t.co", "facebook.", "instagram.", "linkedin.", "reddit.", "youtube.", "tiktok.", "news.ycombinator.com"}

// AcquisitionInput carries the raw signals of a first page load.
type AcquisitionInput struct {
	UTMSource   string
	UTMMedium   string
	UTMCampaign string

	// Referrer is the full referring URL, empty for direct visits.
	Referrer string

	// LandingHost is the host of the landing URL, used to distinguish
	// internal navigation from cross-origin referrals.
	LandingHost string
}

// ExtractAcquisitionContext classifies the traffic source. Explicit UTM
// medium values (cpc/ppc/paid, email, social, referral) take precedence
// over referrer inference; otherwise the referrer domain decides between
// organic search, social, referral, and direct.
func ExtractAcquisitionContext(in AcquisitionInput) datatypes.AcquisitionContext {
	ctx := datatypes.AcquisitionContext{
		Source:      datatypes.AcquisitionDirect,
		UTMSource:   in.UTMSource,
		UTMMedium:   in.UTMMedium,
		UTMCampaign: in.UTMCampaign,
	}

	referrerHost := ""
	if in.Referrer != "" {
		if u, err := url.Parse(in.Referrer); err == nil {
			referrerHost = strings.ToLower(u.Hostname())
		}
	}
	if referrerHost != "" && referrerHost != strings.ToLower(in.LandingHost) {
		ctx.ReferrerDomain = referrerHost
	}

	medium := strings.ToLower(in.UTMMedium)
	switch {
	case medium == "cpc" || medium == "ppc" || medium == "paid":
		ctx.Source = datatypes.AcquisitionPaid
		return ctx
	case medium == "email":
		ctx.Source = datatypes.AcquisitionEmail
		return ctx
	case medium == "social":
		ctx.Source = datatypes.AcquisitionSocial
		return ctx
	case medium == "referral":
		ctx.Source = datatypes.AcquisitionReferral
		return ctx
	}

	if ctx.ReferrerDomain == "" {
		// Same-origin or no referrer. UTM source without a recognized
		// medium still marks the visit as tagged organic traffic.
		if in.UTMSource != "" {
			ctx.Source = datatypes.AcquisitionOrganic
		}
		return ctx
	}

	switch {
	case matchesDomain(ctx.ReferrerDomain, searchDomains):
		ctx.Source = datatypes.AcquisitionOrganic
	case matchesDomain(ctx.ReferrerDomain, socialDomains):
		ctx.Source = datatypes.AcquisitionSocial
	default:
		ctx.Source = datatypes.AcquisitionReferral
	}
	return ctx
}

func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}
