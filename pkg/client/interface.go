package client

import (
	"context"

	"github.com/menta2k/face-cropper/pkg/types"
)

// VisionClient is a multimodal model backend able to locate faces in an image
type VisionClient interface {
	Ping(ctx context.Context) error
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error)
}
