// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// DeviceType classifies the client form factor.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// DeviceOS classifies the client operating system.
type DeviceOS string

const (
	OSiOS     DeviceOS = "ios"
	OSAndroid DeviceOS = "android"
	OSMacOS   DeviceOS = "macos"
	OSWindows DeviceOS = "windows"
	OSLinux   DeviceOS = "linux"
	OSUnknown DeviceOS = "unknown"
)

// DeviceBrowser classifies the client browser.
type DeviceBrowser string

const (
	BrowserChrome  DeviceBrowser = "chrome"
	BrowserSafari  DeviceBrowser = "safari"
	BrowserFirefox DeviceBrowser = "firefox"
	BrowserEdge    DeviceBrowser = "edge"
	BrowserOther   DeviceBrowser = "other"
)

// DeviceInfo describes the client environment for override rules and
// analytics tagging.
type DeviceInfo struct {
	Type    DeviceType    `json:"type"`
	OS      DeviceOS      `json:"os"`
	Browser DeviceBrowser `json:"browser"`
}

// CanRunMacApps reports whether the device can run the native Mac products.
func (d DeviceInfo) CanRunMacApps() bool {
	return d.OS == OSMacOS
}

// TimeBucket is the coarse time-of-day segment a request falls into.
type TimeBucket string

const (
	BucketMorning   TimeBucket = "morning"   // [5, 12)
	BucketAfternoon TimeBucket = "afternoon" // [12, 17)
	BucketEvening   TimeBucket = "evening"   // [17, 21)
	BucketNight     TimeBucket = "night"
)

// TimeContext captures when a request happened, in the user's timezone.
type TimeContext struct {
	HourOfDay int        `json:"hourOfDay"`
	DayOfWeek int        `json:"dayOfWeek"` // 0=Sunday .. 6=Saturday
	Timezone  string     `json:"timezone"`
	IsWeekend bool       `json:"isWeekend"`
	Bucket    TimeBucket `json:"timeOfDayBucket"`
}

// AcquisitionSource classifies how a session arrived.
type AcquisitionSource string

const (
	AcquisitionDirect   AcquisitionSource = "direct"
	AcquisitionOrganic  AcquisitionSource = "organic"
	AcquisitionPaid     AcquisitionSource = "paid"
	AcquisitionSocial   AcquisitionSource = "social"
	AcquisitionEmail    AcquisitionSource = "email"
	AcquisitionReferral AcquisitionSource = "referral"
)

// AcquisitionContext describes the traffic source of a session. It is
// captured once per session: the referrer is only meaningful on the first
// page load, so an existing stored value is never overwritten.
type AcquisitionContext struct {
	Source         AcquisitionSource `json:"source"`
	UTMSource      string            `json:"utmSource,omitempty"`
	UTMMedium      string            `json:"utmMedium,omitempty"`
	UTMCampaign    string            `json:"utmCampaign,omitempty"`
	ReferrerDomain string            `json:"referrerDomain,omitempty"`
}
