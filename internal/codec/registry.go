package codec

import (
	"sort"
	"strings"
	"sync"
)

// Descriptor describes a codec this package knows how to open.
type Descriptor struct {
	ID        CodecID
	Name      string
	MediaType MediaType
	Profiles  []ProfileEntry
}

var descriptors = []Descriptor{
	{ID: H264, Name: "h264", MediaType: MediaVideo, Profiles: h264Profiles},
	{ID: HEVC, Name: "hevc", MediaType: MediaVideo, Profiles: hevcProfiles},
	{ID: MPEG4, Name: "mpeg4", MediaType: MediaVideo, Profiles: mpeg4Profiles},
	{ID: VP8, Name: "vp8", MediaType: MediaVideo},
	{ID: VP9, Name: "vp9", MediaType: MediaVideo, Profiles: vp9Profiles},
	{ID: AV1, Name: "av1", MediaType: MediaVideo, Profiles: av1Profiles},
	{ID: MJPEG, Name: "mjpeg", MediaType: MediaVideo, Profiles: mjpegProfiles},
	{ID: PNG, Name: "png", MediaType: MediaVideo},
	{ID: BMP, Name: "bmp", MediaType: MediaVideo},
	{ID: GIF, Name: "gif", MediaType: MediaVideo},
	{ID: TIFF, Name: "tiff", MediaType: MediaVideo},
	{ID: WEBP, Name: "webp", MediaType: MediaVideo},
	{ID: FFV1, Name: "ffv1", MediaType: MediaVideo},
	{ID: RawVideo, Name: "rawvideo", MediaType: MediaVideo},
	{ID: AAC, Name: "aac", MediaType: MediaAudio, Profiles: aacProfiles},
	{ID: MP3, Name: "mp3", MediaType: MediaAudio},
	{ID: Opus, Name: "opus", MediaType: MediaAudio},
	{ID: FLAC, Name: "flac", MediaType: MediaAudio},
	{ID: PCMS16LE, Name: "pcm_s16le", MediaType: MediaAudio},
}

// registry is built once and only read afterwards.
var registry struct {
	once   sync.Once
	byID   map[CodecID]Descriptor
	byName map[string]CodecID
}

func buildRegistry() {
	registry.once.Do(func() {
		registry.byID = make(map[CodecID]Descriptor, len(descriptors))
		registry.byName = make(map[string]CodecID, len(descriptors))
		for _, d := range descriptors {
			registry.byID[d.ID] = d
			registry.byName[d.Name] = d.ID
		}
	})
}

var initOnce sync.Once

// Init performs the process-wide setup: the descriptor index and FFmpeg's log
// level. It is safe to call any number of times; Open calls it too.
func Init() {
	initOnce.Do(func() {
		buildRegistry()
		initNative()
	})
}

func descriptorFor(id CodecID) (Descriptor, bool) {
	buildRegistry()
	d, ok := registry.byID[id]
	return d, ok
}

// Lookup finds a declared codec by name, ignoring case.
func Lookup(name string) (CodecID, bool) {
	buildRegistry()
	id, ok := registry.byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Descriptors returns every declared codec ordered by name.
func Descriptors() []Descriptor {
	buildRegistry()
	out := make([]Descriptor, 0, len(registry.byID))
	for _, d := range registry.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasEncoder reports whether the linked FFmpeg provides an encoder for id.
func HasEncoder(id CodecID) bool {
	Init()
	return findCodec(id, Encoder) != nil
}

// HasDecoder reports whether the linked FFmpeg provides a decoder for id.
func HasDecoder(id CodecID) bool {
	Init()
	return findCodec(id, Decoder) != nil
}
