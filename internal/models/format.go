package models

// OutputFormat is a complete encoder recipe for one output preset.
type OutputFormat struct {
	Key          string
	Label        string
	Ext          string
	Note         string
	EstMbps      int
	CPUWarn      bool // software encode struggles at 4K
	VideoCodec   string
	VideoParams  []string
	AudioCodec   string
	AudioBitrate string // empty for PCM codecs
	MuxFlags     []string
}

// OutputFormats is the preset table, in menu order. The Pi 5 has no hardware
// encoder for arbitrary input, so H.264/H.265 entries carry CPUWarn.
var OutputFormats = []OutputFormat{
	{
		Key:          "h264_high",
		Label:        "H.264 High",
		Ext:          "mp4",
		Note:         "~50Mbps · Filmora ★",
		EstMbps:      50,
		CPUWarn:      true,
		VideoCodec:   "libx264",
		VideoParams:  []string{"-crf", "18", "-preset", "faster", "-pix_fmt", "yuv420p"},
		AudioCodec:   "aac",
		AudioBitrate: "256k",
		MuxFlags:     []string{"-movflags", "+faststart"},
	},
	{
		Key:          "h264_std",
		Label:        "H.264 Std",
		Ext:          "mp4",
		Note:         "~20Mbps · smaller files",
		EstMbps:      20,
		CPUWarn:      true,
		VideoCodec:   "libx264",
		VideoParams:  []string{"-crf", "23", "-preset", "faster", "-pix_fmt", "yuv420p"},
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		MuxFlags:     []string{"-movflags", "+faststart"},
	},
	{
		Key:          "h265",
		Label:        "H.265 / HEVC",
		Ext:          "mp4",
		Note:         "~25Mbps · efficient 4K",
		EstMbps:      25,
		CPUWarn:      true,
		VideoCodec:   "libx265",
		VideoParams:  []string{"-crf", "20", "-preset", "faster", "-pix_fmt", "yuv420p"},
		AudioCodec:   "aac",
		AudioBitrate: "256k",
		MuxFlags:     []string{"-movflags", "+faststart"},
	},
	{
		Key:          "mkv_h264",
		Label:        "MKV H.264",
		Ext:          "mkv",
		Note:         "~50Mbps · flexible container",
		EstMbps:      50,
		CPUWarn:      true,
		VideoCodec:   "libx264",
		VideoParams:  []string{"-crf", "18", "-preset", "faster", "-pix_fmt", "yuv420p"},
		AudioCodec:   "aac",
		AudioBitrate: "256k",
	},
	{
		Key:         "prores_hq",
		Label:       "ProRes HQ",
		Ext:         "mov",
		Note:        "~220Mbps · max quality",
		EstMbps:     220,
		VideoCodec:  "prores_ks",
		VideoParams: []string{"-profile:v", "3", "-vendor", "ap10", "-pix_fmt", "yuv422p10le"},
		AudioCodec:  "pcm_s24le",
		MuxFlags:    []string{"-movflags", "+faststart"},
	},
	{
		Key:         "prores_lt",
		Label:       "ProRes LT",
		Ext:         "mov",
		Note:        "~100Mbps · edit-ready",
		EstMbps:     100,
		VideoCodec:  "prores_ks",
		VideoParams: []string{"-profile:v", "1", "-vendor", "ap10", "-pix_fmt", "yuv422p10le"},
		AudioCodec:  "pcm_s24le",
		MuxFlags:    []string{"-movflags", "+faststart"},
	},
	{
		Key:         "prores_proxy",
		Label:       "ProRes Proxy",
		Ext:         "mov",
		Note:        "~40Mbps · offline / rough cut",
		EstMbps:     40,
		VideoCodec:  "prores_ks",
		VideoParams: []string{"-profile:v", "0", "-vendor", "ap10", "-pix_fmt", "yuv422p10le"},
		AudioCodec:  "pcm_s24le",
		MuxFlags:    []string{"-movflags", "+faststart"},
	},
}

// DefaultFormatIndex selects h264_high — best out-of-the-box editor support.
const DefaultFormatIndex = 0

// FormatByKey returns the preset with the given key, or the default preset.
func FormatByKey(key string) OutputFormat {
	for _, f := range OutputFormats {
		if f.Key == key {
			return f
		}
	}
	return OutputFormats[DefaultFormatIndex]
}

// ClampFormatIndex clamps idx into the valid preset range.
func ClampFormatIndex(idx int) int {
	if idx < 0 {
		return 0
	}
	if idx >= len(OutputFormats) {
		return len(OutputFormats) - 1
	}
	return idx
}

// ResolutionLabel shortens a WxH string for narrow displays.
func ResolutionLabel(res string) string {
	switch res {
	case "3840x2160":
		return "4K"
	case "1920x1080":
		return "1080p"
	case "1280x720":
		return "720p"
	}
	return res
}

// Resolutions lists the capture sizes the rig cycles through.
var Resolutions = []string{"3840x2160", "1920x1080", "1280x720"}
