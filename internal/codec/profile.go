package codec

import "strings"

// Profile is a codec profile value as FFmpeg numbers it.
type Profile int

// ProfileUnknown is returned when a profile name does not resolve.
const ProfileUnknown Profile = -99

// ProfileEntry is one declared (name, value) pair.
type ProfileEntry struct {
	Name  string
	Value Profile
}

// Declared profiles, using FFmpeg's names and AV_PROFILE_* values.
var (
	h264Profiles = []ProfileEntry{
		{"Baseline", 66},
		{"Constrained Baseline", 66 | 0x200},
		{"Main", 77},
		{"Extended", 88},
		{"High", 100},
		{"High 10", 110},
		{"High 4:2:2", 122},
		{"High 4:4:4 Predictive", 244},
	}
	hevcProfiles = []ProfileEntry{
		{"Main", 1},
		{"Main 10", 2},
		{"Main Still Picture", 3},
		{"Rext", 4},
	}
	mpeg4Profiles = []ProfileEntry{
		{"Simple", 0},
		{"Simple Scalable", 1},
		{"Core", 2},
		{"Main", 3},
		{"Advanced Simple Profile", 15},
	}
	vp9Profiles = []ProfileEntry{
		{"Profile 0", 0},
		{"Profile 1", 1},
		{"Profile 2", 2},
		{"Profile 3", 3},
	}
	av1Profiles = []ProfileEntry{
		{"Main", 0},
		{"High", 1},
		{"Professional", 2},
	}
	mjpegProfiles = []ProfileEntry{
		{"Baseline", 0xc0},
		{"Sequential", 0xc1},
		{"Progressive", 0xc2},
		{"Lossless", 0xc3},
	}
	aacProfiles = []ProfileEntry{
		{"LC", 1},
		{"HE-AAC", 4},
		{"HE-AACv2", 28},
		{"LD", 22},
		{"ELD", 38},
		{"Main", 0},
		{"SSR", 2},
		{"LTP", 3},
	}
)

// resolveProfile walks a declared list. An empty list resolves nothing.
func resolveProfile(profiles []ProfileEntry, name string) Profile {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ProfileUnknown
}

// ResolveProfile maps a profile name to its value for the given codec.
// It returns ProfileUnknown for unknown codecs and unknown names.
func ResolveProfile(id CodecID, name string) Profile {
	d, ok := descriptorFor(id)
	if !ok {
		return ProfileUnknown
	}
	return resolveProfile(d.Profiles, name)
}
