package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/realenhance/restage/internal/constants"
	"github.com/realenhance/restage/internal/domain"
	"github.com/realenhance/restage/internal/raster"
)

// Store writes intermediate stage images to job-unique paths so
// concurrent jobs never collide.
type Store struct {
	root string
}

// NewStore builds a store rooted at dir. Empty dir resolves to
// ~/.restage/artifacts.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, constants.RestageHome, constants.ArtifactsDir)
	}
	return &Store{root: dir}, nil
}

// Path returns the artifact path for one stage attempt of one job. The
// job ID is the collision guard; stage and attempt make reruns
// distinguishable when debugging a failed ladder.
func (s *Store) Path(jobID string, stage domain.Stage, attempt int) string {
	return filepath.Join(s.root, jobID, fmt.Sprintf("stage-%s-attempt-%d.png", stage, attempt))
}

// Save writes img for one stage attempt and returns its artifact record.
func (s *Store) Save(img image.Image, jobID string, stage domain.Stage, attempt int) (domain.Artifact, error) {
	path := s.Path(jobID, stage, attempt)
	if err := raster.Save(img, path); err != nil {
		return domain.Artifact{}, err
	}
	w, h := raster.Dimensions(img)
	return domain.Artifact{
		StageID:   stage,
		ImageRef:  path,
		Width:     w,
		Height:    h,
		CreatedAt: time.Now().UTC(),
	}, nil
}
