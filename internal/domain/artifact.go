package domain

import "time"

// Artifact is the output of one generation call. Artifacts are immutable
// once created: validators reference them, never mutate them.
//
// Example JSON representation:
//
//	{
//	    "stage_id": "1A",
//	    "image_ref": "/data/artifacts/job-abc/1A-attempt1.png",
//	    "width": 1920,
//	    "height": 1280,
//	    "created_at": "2026-08-27T10:00:00Z"
//	}
type Artifact struct {
	// StageID is the stage that produced this artifact.
	StageID Stage `json:"stage_id"`

	// ImageRef is the handle to the stored image, a filesystem path under
	// the job's artifact directory.
	ImageRef string `json:"image_ref"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// CreatedAt is when the artifact was written.
	CreatedAt time.Time `json:"created_at"`
}

// Job describes one enhancement request flowing through the pipeline.
// A job is processed by one logical worker at a time.
type Job struct {
	// ID uniquely identifies the job. Artifact paths derive from it so
	// concurrent jobs never collide.
	ID string `json:"id"`

	// Goal is the user's staging goal, passed opaquely to the instruction
	// builder. The validator never inspects it.
	Goal string `json:"goal"`

	// RoomType describes the room (e.g. "living room", "bedroom").
	RoomType string `json:"room_type"`

	// Scene classifies the photograph for threshold selection.
	Scene Scene `json:"scene"`

	// InputRef is the path to the original photograph.
	InputRef string `json:"input_ref"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
}
