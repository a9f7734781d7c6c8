package estimator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// PredictMethod is the full RPC name served by the pose-estimation service.
const PredictMethod = "/posecheck.PoseEstimator/Predict"

// ErrMalformedResponse indicates the service replied with an unexpected shape.
var ErrMalformedResponse = errors.New("estimator: malformed predict response")

// #region types
// Prediction holds every person detected in one frame.
type Prediction struct {
	Persons []geometry.Keypoints
	Scores  []float64 // per-person detection confidence, may be empty
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to the external pose model service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to the pose model gRPC server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an injected connection.
// Used for testing without a real server.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection. It is a no-op for injected connections.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region predict
// Predict sends one encoded image frame and returns the detected keypoints.
// format is the image encoding, e.g. "jpg" or "png".
func (c *Client) Predict(ctx context.Context, frame []byte, format string) (Prediction, error) {
	req, err := structpb.NewStruct(map[string]any{
		"frame":  base64.StdEncoding.EncodeToString(frame),
		"format": format,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("build predict request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return Prediction{}, fmt.Errorf("predict rpc: %w", err)
	}
	return decodePrediction(resp)
}

// #endregion predict

// #region decode
// decodePrediction reads {"persons": [[[x,y],...],...], "scores": [...]}.
// Points may also be {"x":..,"y":..} objects.
func decodePrediction(resp *structpb.Struct) (Prediction, error) {
	personsVal, ok := resp.GetFields()["persons"]
	if !ok {
		return Prediction{}, fmt.Errorf("%w: no persons field", ErrMalformedResponse)
	}
	list := personsVal.GetListValue()
	if list == nil {
		return Prediction{}, fmt.Errorf("%w: persons is not a list", ErrMalformedResponse)
	}

	pred := Prediction{Persons: make([]geometry.Keypoints, 0, len(list.GetValues()))}
	for i, pv := range list.GetValues() {
		pts := pv.GetListValue()
		if pts == nil {
			return Prediction{}, fmt.Errorf("%w: person %d is not a list", ErrMalformedResponse, i)
		}
		kp := make(geometry.Keypoints, 0, len(pts.GetValues()))
		for j, v := range pts.GetValues() {
			p, err := decodePoint(v)
			if err != nil {
				return Prediction{}, fmt.Errorf("%w: person %d keypoint %d: %v", ErrMalformedResponse, i, j, err)
			}
			kp = append(kp, p)
		}
		pred.Persons = append(pred.Persons, kp)
	}

	if sv, ok := resp.GetFields()["scores"]; ok {
		for _, s := range sv.GetListValue().GetValues() {
			pred.Scores = append(pred.Scores, s.GetNumberValue())
		}
	}
	return pred, nil
}

func decodePoint(v *structpb.Value) (geometry.Point, error) {
	if l := v.GetListValue(); l != nil {
		vals := l.GetValues()
		if len(vals) < 2 {
			return geometry.Point{}, fmt.Errorf("want [x, y], got %d values", len(vals))
		}
		return geometry.Point{X: vals[0].GetNumberValue(), Y: vals[1].GetNumberValue()}, nil
	}
	if s := v.GetStructValue(); s != nil {
		x, okX := s.GetFields()["x"]
		y, okY := s.GetFields()["y"]
		if !okX || !okY {
			return geometry.Point{}, errors.New("want {x, y}")
		}
		return geometry.Point{X: x.GetNumberValue(), Y: y.GetNumberValue()}, nil
	}
	return geometry.Point{}, errors.New("unsupported point encoding")
}

// #endregion decode
