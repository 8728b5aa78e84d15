package storage

import "errors"

var ErrInvalidName = errors.New("invalid artifact name")

// IService owns the stable, servable copies of annotated images.
type IService interface {
	// StoreFile copies an image from an unstable location and returns its new unique name.
	StoreFile(fileName string) (string, error)
	// StoreBytes persists an encoded image and returns its new unique name.
	StoreBytes(data []byte) (string, error)
	// Path resolves a name returned by StoreFile/StoreBytes to a file path.
	Path(name string) (string, error)
}
