package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielpatrickdp/posture-check/internal/geometry"
)

// #region input-kind

// InputKind says how an input path is processed.
type InputKind int

const (
	InputUnsupported InputKind = iota
	InputImage
	InputKeypoints
)

var imageFormats = map[string]string{
	".jpg":  "jpg",
	".jpeg": "jpg",
	".png":  "png",
	".bmp":  "bmp",
}

// Classify picks the input kind from the file extension. For images the
// second return is the encoding name passed to the estimator.
func Classify(path string) (InputKind, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := imageFormats[ext]; ok {
		return InputImage, f
	}
	if ext == ".json" {
		return InputKeypoints, ""
	}
	return InputUnsupported, ""
}

// #endregion

// #region keypoint-file

// keypointFile is the JSON layout of pre-extracted keypoints:
//
//	{"source": "clip.mp4", "frames": [{"index": 0, "persons": [[[x, y], ...], ...]}]}
type keypointFile struct {
	Source string `json:"source"`
	Frames []struct {
		Index   int           `json:"index"`
		Persons [][][]float64 `json:"persons"`
	} `json:"frames"`
}

// LoadKeypointFile reads frames of pre-extracted keypoints. Source defaults to
// the file path when the document does not name one.
func LoadKeypointFile(path string) ([]Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypoints %s: %w", path, err)
	}
	var kf keypointFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keypoints %s: %w", path, err)
	}
	source := kf.Source
	if source == "" {
		source = path
	}

	frames := make([]Frame, 0, len(kf.Frames))
	for fi, f := range kf.Frames {
		frame := Frame{Source: source, Index: f.Index, Persons: make([]geometry.Keypoints, len(f.Persons))}
		for pi, person := range f.Persons {
			kp := make(geometry.Keypoints, len(person))
			for ki, xy := range person {
				if len(xy) < 2 {
					return nil, fmt.Errorf("keypoints %s: frame %d person %d point %d: want [x, y]", path, fi, pi, ki)
				}
				kp[ki] = geometry.Point{X: xy[0], Y: xy[1]}
			}
			frame.Persons[pi] = kp
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// #endregion
