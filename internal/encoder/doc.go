// Package encoder describes the ffmpeg invocation used to re-encode the
// browser's live stream and push it to an RTMP ingestion endpoint.
//
// A [Profile] carries every encoding parameter (codec, frame rate, GOP size,
// quality, pixel format, profile/level, audio settings, container). The
// defaults reproduce the relay's fixed argument vector:
//
//	-i - -c:v libx264 -preset ultrafast -tune zerolatency -r 25 -g 50
//	-keyint_min 25 -crf 25 -pix_fmt yuv420p -sc_threshold 0 -profile:v main
//	-level 3.1 -c:a aac -b:a 128k -ar 32000 -f flv <destination>
//
// Operators may override individual fields with a YAML file loaded by
// [LoadProfile]. The broadcast key never lives in a profile; it is carried
// by [Destination] and redacted whenever arguments are logged.
package encoder
