package parser

import "strings"

// noiseTokens never contribute to a title. Words that also occur in real
// titles (web, hd, cam, ts, sub...) are deliberately absent.
var noiseTokens = buildSet(
	// video codecs
	"x264", "x265", "h264", "h265", "hevc", "avc", "divx", "xvid", "vp9", "av1",
	"10bit", "8bit", "hi10p", "hdr", "hdr10", "hdr10+", "dovi",
	// audio
	"aac", "ac3", "eac3", "dd", "ddp", "dts", "dts-hd", "dtshd", "dts-x", "truehd", "atmos", "flac",
	"5.1ch", "7.1ch",
	// resolution
	"480p", "480i", "576p", "576i", "720p", "720i", "1080p", "1080i", "2160p", "4k", "uhd",
	// source
	"bluray", "blu-ray", "bdrip", "brrip", "bdremux", "hdrip", "hddvd", "dvdrip", "dvdscr",
	"webrip", "web-dl", "webdl", "hdtv", "pdtv", "hdcam", "telesync", "amzn", "nf", "dsnp", "hmax",
	// release flags
	"remux", "proper", "repack", "rerip", "unrated", "remastered", "readnfo", "nfofix",
	"multisubs", "dubbed", "subbed",
)

func buildSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// isNoise reports whether tok is a quality/codec/source tag, including the
// "x264-GROUP" form where a release group is glued to the last tag.
func isNoise(tok string) bool {
	lower := strings.ToLower(tok)
	if _, ok := noiseTokens[lower]; ok {
		return true
	}
	if i := strings.LastIndexByte(lower, '-'); i > 0 {
		if _, ok := noiseTokens[lower[:i]]; ok {
			return true
		}
	}
	return false
}
