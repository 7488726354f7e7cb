package encoder

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Profile holds the encoding parameters passed to ffmpeg.
type Profile struct {
	VideoCodec        string   `yaml:"video_codec" json:"videoCodec"`
	Preset            string   `yaml:"preset" json:"preset"`
	Tune              string   `yaml:"tune" json:"tune"`
	FrameRate         int      `yaml:"frame_rate" json:"frameRate"`
	GOPSize           int      `yaml:"gop_size" json:"gopSize"`
	KeyintMin         int      `yaml:"keyint_min" json:"keyintMin"`
	CRF               int      `yaml:"crf" json:"crf"`
	PixelFormat       string   `yaml:"pixel_format" json:"pixelFormat"`
	SceneCutThreshold int      `yaml:"sc_threshold" json:"scThreshold"`
	VideoProfile      string   `yaml:"video_profile" json:"videoProfile"`
	Level             string   `yaml:"level" json:"level"`
	AudioCodec        string   `yaml:"audio_codec" json:"audioCodec"`
	AudioBitrate      string   `yaml:"audio_bitrate" json:"audioBitrate"`
	AudioSampleRate   int      `yaml:"audio_sample_rate" json:"audioSampleRate"`
	Format            string   `yaml:"format" json:"format"`
	ExtraOutputArgs   []string `yaml:"extra_output_args" json:"extraOutputArgs,omitempty"`
}

const defaultFrameRate = 25

// DefaultProfile returns the fixed H.264/AAC over FLV profile.
func DefaultProfile() Profile {
	return Profile{
		VideoCodec:        "libx264",
		Preset:            "ultrafast",
		Tune:              "zerolatency",
		FrameRate:         defaultFrameRate,
		GOPSize:           defaultFrameRate * 2,
		KeyintMin:         defaultFrameRate,
		CRF:               25,
		PixelFormat:       "yuv420p",
		SceneCutThreshold: 0,
		VideoProfile:      "main",
		Level:             "3.1",
		AudioCodec:        "aac",
		AudioBitrate:      "128k",
		AudioSampleRate:   128000 / 4,
		Format:            "flv",
	}
}

// LoadProfile reads a YAML profile from path and merges it over
// DefaultProfile. An empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read encoder profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse encoder profile %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid encoder profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the profile can produce a usable command line.
func (p Profile) Validate() error {
	var errs []error
	if p.VideoCodec == "" {
		errs = append(errs, errors.New("video_codec is required"))
	}
	if p.AudioCodec == "" {
		errs = append(errs, errors.New("audio_codec is required"))
	}
	if p.Format == "" {
		errs = append(errs, errors.New("format is required"))
	}
	if p.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive, got %d", p.FrameRate))
	}
	if p.GOPSize <= 0 {
		errs = append(errs, fmt.Errorf("gop_size must be positive, got %d", p.GOPSize))
	}
	if p.KeyintMin < 0 || p.KeyintMin > p.GOPSize {
		errs = append(errs, fmt.Errorf("keyint_min must be between 0 and gop_size, got %d", p.KeyintMin))
	}
	if p.CRF < 0 || p.CRF > 51 {
		errs = append(errs, fmt.Errorf("crf must be between 0 and 51, got %d", p.CRF))
	}
	if p.AudioSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio_sample_rate must be positive, got %d", p.AudioSampleRate))
	}
	return errors.Join(errs...)
}

// Args builds the ffmpeg argument vector that reads from stdin and writes
// to dest.
func (p Profile) Args(dest string) []string {
	args := []string{
		"-i", "-",
		"-c:v", p.VideoCodec,
	}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.Tune != "" {
		args = append(args, "-tune", p.Tune)
	}
	args = append(args,
		"-r", strconv.Itoa(p.FrameRate),
		"-g", strconv.Itoa(p.GOPSize),
		"-keyint_min", strconv.Itoa(p.KeyintMin),
		"-crf", strconv.Itoa(p.CRF),
	)
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	args = append(args, "-sc_threshold", strconv.Itoa(p.SceneCutThreshold))
	if p.VideoProfile != "" {
		args = append(args, "-profile:v", p.VideoProfile)
	}
	if p.Level != "" {
		args = append(args, "-level", p.Level)
	}
	args = append(args, "-c:a", p.AudioCodec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	args = append(args, p.ExtraOutputArgs...)
	args = append(args, "-f", p.Format, dest)
	return args
}
