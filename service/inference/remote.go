package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/khaledhikmat/seat-go/model"
)

// remoteService delegates inference to an external model server that accepts a multipart
// upload and answers with JSON detections.
type remoteService struct {
	inferenceURL string
	client       *http.Client
}

type remoteResponse struct {
	Detections     []model.Detection `json:"detections"`
	AnnotatedImage string            `json:"annotated_image,omitempty"` // base64, optional
}

func NewRemote(inferenceURL string, client *http.Client) IService {
	if client == nil {
		client = &http.Client{}
	}
	return &remoteService{
		inferenceURL: inferenceURL,
		client:       client,
	}
}

func (svc *remoteService) Detect(ctx context.Context, img image.Image, opts Options) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(float64(opts.Confidence), 'f', -1, 32)); err != nil {
		return Result{}, err
	}
	if err := writer.WriteField("imgsz", strconv.Itoa(opts.ImageSize)); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.inferenceURL, body)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := svc.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	result := Result{Detections: decoded.Detections}
	if result.Detections == nil {
		result.Detections = []model.Detection{}
	}
	if decoded.AnnotatedImage != "" {
		result.Annotated, err = base64.StdEncoding.DecodeString(decoded.AnnotatedImage)
		if err != nil {
			return Result{}, fmt.Errorf("decode annotated image: %w", err)
		}
	}

	return result, nil
}

func (svc *remoteService) Close() error {
	svc.client.CloseIdleConnections()
	return nil
}
