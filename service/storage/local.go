package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/khaledhikmat/seat-go/service/config"
)

type localService struct {
	CfgSvc config.IService
}

func NewLocal(cfgsvc config.IService) IService {
	return &localService{
		CfgSvc: cfgsvc,
	}
}

func (svc *localService) StoreFile(fileName string) (string, error) {
	img, err := imaging.Open(fileName)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", fileName, err)
	}

	name, dst, err := svc.newTarget()
	if err != nil {
		return "", err
	}

	if err := imaging.Save(img, dst); err != nil {
		return "", fmt.Errorf("saving %s: %w", dst, err)
	}
	return name, nil
}

func (svc *localService) StoreBytes(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding annotated image: %w", err)
	}

	name, dst, err := svc.newTarget()
	if err != nil {
		return "", err
	}

	if err := imaging.Save(img, dst); err != nil {
		return "", fmt.Errorf("saving %s: %w", dst, err)
	}
	return name, nil
}

func (svc *localService) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}

	p := filepath.Join(svc.CfgSvc.GetResultsFolder(), name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// newTarget picks a random name; collisions are not checked.
func (svc *localService) newTarget() (string, string, error) {
	folder := svc.CfgSvc.GetResultsFolder()
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", "", err
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ".jpg"
	return name, filepath.Join(folder, name), nil
}
