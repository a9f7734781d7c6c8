package geometry

// COCO-17 keypoint layout as emitted by YOLO-pose style models.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	COCOKeypointCount
)

var cocoNames = [COCOKeypointCount]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// KeypointName returns the COCO landmark name for index i, or "" when out of range.
func KeypointName(i int) string {
	if i < 0 || i >= COCOKeypointCount {
		return ""
	}
	return cocoNames[i]
}
